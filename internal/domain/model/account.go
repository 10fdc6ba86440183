package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleBudget   Role = "budget"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the three known roles, case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleEmployee, RoleBudget, RoleAdmin:
		return r, true
	}
	return "", false
}

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	NationalID   string    `json:"national_id"`
	PasswordHash string    `json:"-"` // Not exposed
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountSummary is the public projection of an Account.
type AccountSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role,omitempty"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Email: a.Email, FullName: a.FullName, Role: a.Role}
}

// Principal is an authenticated caller as asserted by its session token.
type Principal struct {
	ID   string
	Role Role
}

// NormalizeEmail is applied before every store lookup so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
