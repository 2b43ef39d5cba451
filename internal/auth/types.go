package auth

import (
	"time"

	"wastechem.org/internal/datasvc"
)

// Identity is the authenticated caller as resolved from a bearer token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Role groups permissions.
type Role struct {
	ID          datasvc.Key `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
}

// User is a profile row together with its resolved role.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	RoleID    *datasvc.Key `json:"role_id"`
	Role      *Role        `json:"roles"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
}

// Profile is the caller's own user record plus the names of every permission
// granted through its role.
type Profile struct {
	User
	Permissions []string `json:"permissions"`
}
