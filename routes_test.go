package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-planner-auth"
)

func TestRouteTableClassification(t *testing.T) {
	routes := auth.NewRouteTable("jwt")

	tests := []struct {
		path   string
		public bool
	}{
		{"/auth/register", true},
		{"/auth/login", true},
		{"/auth/LOGIN", true},
		{"/auth/activate-account", true},
		{"/auth/resend-activate-email", true},
		{"/auth/send-reset-password-email", true},
		{"/auth/test-no-auth", true},
		{"/auth/index", true},
		{"/auth/logout", false},
		{"/auth/update-password", false},
		{"/auth/test-with-auth", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.public, routes.IsPublic(tt.path))
		})
	}
}

// Matching is by substring, so a protected path that happens to contain a
// public keyword is classified public. This pins the current behavior.
func TestRouteTableSubstringMatchIsOverBroad(t *testing.T) {
	routes := auth.NewRouteTable("jwt")

	assert.True(t, routes.IsPublic("/auth/admin/login-history"))
	assert.True(t, routes.IsPublic("/reports/reindex"))
}

func TestRouteTableExtraKeywords(t *testing.T) {
	routes := auth.NewRouteTable("jwt", " Health ", "", "login")

	assert.True(t, routes.IsPublic("/health"))
	assert.Len(t, routes.PublicRoutes(), len(auth.DefaultPublicRoutes)+1)
}

func TestRouteTableTokenLookup(t *testing.T) {
	routes := auth.NewRouteTable("session")

	assert.True(t, routes.UsesHeader("/auth/update-password"))
	assert.Equal(t, "header:Authorization,cookie:session", routes.TokenLookup("/auth/update-password"))

	assert.False(t, routes.UsesHeader("/auth/logout"))
	assert.Equal(t, "cookie:session", routes.TokenLookup("/auth/logout"))
}
