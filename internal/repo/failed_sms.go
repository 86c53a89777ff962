package repo

import (
	"context"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

type FailedFilter struct {
	// UserID scopes the listing; empty means every user.
	UserID     string
	Unresolved bool
	Limit      int
	Offset     int
}

type FailedSMSRepository interface {
	CreateMany(ctx context.Context, userID string, failures []model.Recipient) ([]model.FailedSMS, error)
	List(ctx context.Context, f FailedFilter) ([]model.FailedSMS, error)
	Get(ctx context.Context, id string) (model.FailedSMS, error)
	MarkResolved(ctx context.Context, id string) error
	// OldestUnresolved returns unresolved records across all users, oldest first.
	OldestUnresolved(ctx context.Context, limit int) ([]model.FailedSMS, error)
}
