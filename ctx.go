package auth

import (
	"context"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// IdentityLocalsKey is the fiber Locals key holding the request Identity
const IdentityLocalsKey = "identity"

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// Identity is the authenticated principal attached to a request. It is built
// from the token snapshot and never touches the store.
type Identity struct {
	ID          int64
	Username    string
	Email       string
	Authorities map[string]struct{}
	// Purpose of the token the identity came from
	Purpose TokenPurpose
	// ResetFingerprint is set for reset tokens, see TokenService.IssueReset
	ResetFingerprint string
}

// IdentityFromSnapshot builds an Identity whose authority set holds the
// snapshot role names.
func IdentityFromSnapshot(s AccountSnapshot) Identity {
	authorities := make(map[string]struct{}, len(s.Roles))
	for _, r := range s.Roles {
		if r.Name != "" {
			authorities[strings.ToUpper(r.Name)] = struct{}{}
		}
	}
	return Identity{
		ID:          s.ID,
		Username:    s.Username,
		Email:       s.Email,
		Authorities: authorities,
	}
}

// IdentityFromClaims builds an Identity from verified token claims
func IdentityFromClaims(claims *JWTClaims) Identity {
	identity := IdentityFromSnapshot(*claims.User)
	identity.Purpose = claims.Purpose
	identity.ResetFingerprint = claims.Fingerprint
	return identity
}

// IsReset reports whether the identity was authenticated with a reset token
func (i Identity) IsReset() bool {
	return i.Purpose == TokenPurposeReset
}

// HasAuthority reports whether the identity carries role
func (i Identity) HasAuthority(role string) bool {
	_, ok := i.Authorities[strings.ToUpper(role)]
	return ok
}

// AuthorityNames returns the sorted authority set
func (i Identity) AuthorityNames() []string {
	out := make([]string, 0, len(i.Authorities))
	for a := range i.Authorities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the Identity in the context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityCtxKey).(Identity)
	return identity, ok
}

// GetIdentity extracts the Identity attached by the pipeline
func GetIdentity(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(IdentityLocalsKey).(Identity)
	return identity, ok
}
