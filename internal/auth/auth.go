package auth

import (
	"context"
	"errors"

	"github.com/LeventeLantos/result-messaging/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrPendingApproval    = errors.New("user account is pending approval")
	ErrForbidden          = errors.New("not enough permissions")
	ErrInvalidToken       = errors.New("could not validate credentials")
)

type Permission string

const (
	PermProfile   Permission = "profile"
	PermSend      Permission = "send"
	PermTemplates Permission = "templates"
	PermFailures  Permission = "failures"
	PermAdmin     Permission = "admin"
)

var permissions = map[model.Role]map[Permission]bool{
	model.RoleApproved: {
		PermProfile:   true,
		PermSend:      true,
		PermTemplates: true,
		PermFailures:  true,
	},
	model.RolePending: {
		PermProfile: true,
	},
}

// Can reports whether role holds perm. Admins hold every permission.
func Can(role model.Role, perm Permission) bool {
	if role == model.RoleAdmin {
		return true
	}
	return permissions[role][perm]
}

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID string     `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
