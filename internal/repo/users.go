package repo

import (
	"context"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	// List returns users ordered by creation; an empty role means all roles.
	List(ctx context.Context, role model.Role) ([]model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	Delete(ctx context.Context, id string) error
}
