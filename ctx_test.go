package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-planner-auth"
)

func TestIdentityFromSnapshot(t *testing.T) {
	identity := auth.IdentityFromSnapshot(auth.AccountSnapshot{
		ID:       3,
		Username: "alice",
		Email:    "alice@example.com",
		Roles:    []auth.RoleRef{{Name: "user"}, {Name: "ADMIN"}, {Name: ""}},
	})

	assert.Equal(t, int64(3), identity.ID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, []string{"ADMIN", "USER"}, identity.AuthorityNames())
	assert.True(t, identity.HasAuthority("user"))
	assert.True(t, identity.HasAuthority(auth.RoleAdmin))
	assert.False(t, identity.HasAuthority("OWNER"))
}

func TestIdentityContext(t *testing.T) {
	_, ok := auth.IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.IdentityFromContext(nil)
	assert.False(t, ok)

	identity := auth.Identity{ID: 1, Email: "a@example.com"}
	ctx := auth.WithIdentity(context.Background(), identity)

	got, ok := auth.IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, identity, got)
}
