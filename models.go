package auth

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	// RoleUser is assigned to every registered account
	RoleUser = "USER"
	// RoleAdmin grants access to administrative routes
	RoleAdmin = "ADMIN"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            int64             `bun:"id,pk,autoincrement" json:"id"`
	Username      string            `bun:"username,notnull,unique" json:"username"`
	Email         string            `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string            `bun:"password_hash,notnull" json:"-"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	Roles         []Role            `bun:"-" json:"roles,omitempty"`
	Activation    *ActivationRecord `bun:"-" json:"-"`
}

// Equal compares accounts by email identity
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == other
	}
	return strings.EqualFold(a.Email, other.Email)
}

// RoleNames returns the names of the roles attached to the account
func (a *Account) RoleNames() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		names = append(names, r.Name)
	}
	return names
}

// IsActivated reports whether the activation record was flipped
func (a *Account) IsActivated() bool {
	return a != nil && a.Activation != nil && a.Activation.Activated
}

// Snapshot returns the token safe view of the account, never including
// the password hash.
func (a *Account) Snapshot() AccountSnapshot {
	if a == nil {
		return AccountSnapshot{}
	}
	roles := make([]RoleRef, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, RoleRef{Name: r.Name})
	}
	return AccountSnapshot{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    roles,
	}
}

// Role is a named permission group
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Name          string `bun:"name,notnull,unique" json:"name"`
}

// AccountRole joins accounts and roles
type AccountRole struct {
	bun.BaseModel `bun:"table:account_roles,alias:ar"`
	AccountID     int64 `bun:"account_id,pk"`
	RoleID        int64 `bun:"role_id,pk"`
}

// ActivationRecord tracks whether an account was activated. Activated only
// ever moves from false to true and Token never changes after creation.
type ActivationRecord struct {
	bun.BaseModel `bun:"table:activations,alias:act"`
	ID            int64     `bun:"id,pk,autoincrement" json:"-"`
	AccountID     int64     `bun:"account_id,notnull,unique" json:"-"`
	Activated     bool      `bun:"activated,notnull" json:"activated"`
	Token         string    `bun:"token,notnull,unique" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
}
