package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultPublicRoutes are the path keywords reachable without a token
var DefaultPublicRoutes = []string{
	"register",
	"login",
	"activate-account",
	"resend-activate-email",
	"send-reset-password-email",
	"test-no-auth",
	"index",
}

// DefaultHeaderRoutes are the path keywords whose token travels in the
// Authorization header instead of the access cookie.
var DefaultHeaderRoutes = []string{
	"update-password",
}

// RouteTable classifies request paths as public or protected and picks where
// a protected route's token lives. A path matches a keyword when it contains
// it, ignoring case.
type RouteTable struct {
	public     []string
	header     []string
	cookieName string
}

// NewRouteTable builds a table with the default public keywords plus extra
func NewRouteTable(cookieName string, extra ...string) *RouteTable {
	return &RouteTable{
		public:     normalizeKeywords(append(append([]string{}, DefaultPublicRoutes...), extra...)),
		header:     normalizeKeywords(DefaultHeaderRoutes),
		cookieName: cookieName,
	}
}

// IsPublic reports whether path needs no token
func (r *RouteTable) IsPublic(path string) bool {
	return containsAny(path, r.public)
}

// UsesHeader reports whether the token for path is read from the
// Authorization header
func (r *RouteTable) UsesHeader(path string) bool {
	return containsAny(path, r.header)
}

// TokenLookup returns the jwtware lookup for path. Header routes fall back to
// the cookie so a signed in client can use them too.
func (r *RouteTable) TokenLookup(path string) string {
	if r.UsesHeader(path) {
		return "header:" + fiber.HeaderAuthorization + ",cookie:" + r.cookieName
	}
	return "cookie:" + r.cookieName
}

// PublicRoutes returns the public keywords
func (r *RouteTable) PublicRoutes() []string {
	return append([]string(nil), r.public...)
}

func containsAny(path string, keywords []string) bool {
	p := strings.ToLower(path)
	for _, k := range keywords {
		if strings.Contains(p, k) {
			return true
		}
	}
	return false
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
