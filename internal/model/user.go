package model

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RolePending  Role = "pending"
	RoleApproved Role = "approved"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePending, RoleApproved:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
