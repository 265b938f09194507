package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleRef is a role as it travels inside tokens and responses
type RoleRef struct {
	Name string `json:"name"`
}

// AccountSnapshot is the account view embedded in tokens and returned on
// login. Password is always blank; it exists so the blanking is explicit.
type AccountSnapshot struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Roles    []RoleRef `json:"roles"`
}

// RoleNames returns the role names of the snapshot
func (s AccountSnapshot) RoleNames() []string {
	names := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		names = append(names, r.Name)
	}
	return names
}

// TokenPurpose says what a token may be used for
type TokenPurpose string

const (
	// TokenPurposeAccess is the session token set on login
	TokenPurposeAccess TokenPurpose = "access"
	// TokenPurposeReset is mailed on a password reset request. It is only
	// accepted as a Bearer token on header routes and authorizes a single
	// password change.
	TokenPurposeReset TokenPurpose = "reset"
)

// JWTClaims is the token payload: registered claims plus the account snapshot
type JWTClaims struct {
	jwt.RegisteredClaims
	User    *AccountSnapshot `json:"user,omitempty"`
	Purpose TokenPurpose     `json:"typ,omitempty"`
	// Fingerprint binds a reset token to the password hash it was issued for
	Fingerprint string `json:"pfp,omitempty"`
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
