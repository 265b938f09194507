package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-planner-auth"
)

func TestHashPassword(t *testing.T) {
	auth.SetPasswordCost(bcrypt.MinCost)
	defer auth.SetPasswordCost(0)

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := auth.HashPassword(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)

			cost, err := bcrypt.Cost([]byte(hash))
			assert.NoError(t, err)
			assert.Equal(t, bcrypt.MinCost, cost)

			err = auth.ComparePasswordAndHash(tt.password, hash)
			assert.NoError(t, err)
		})
	}
}

func TestComparePasswordAndHash(t *testing.T) {
	auth.SetPasswordCost(bcrypt.MinCost)
	defer auth.SetPasswordCost(0)

	password := "testPassword123!"
	hash, err := auth.HashPassword(password)
	assert.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		kind     string
	}{
		{
			name:     "Matching password",
			password: password,
			hash:     hash,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			kind:     auth.KindBadCredentials,
		},
		{
			name:     "Invalid hash",
			password: password,
			hash:     "invalidhash",
			kind:     auth.KindInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ComparePasswordAndHash(tt.password, tt.hash)

			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.kind, auth.KindOf(err))
		})
	}
}

func TestSetPasswordCostOutOfRangeResets(t *testing.T) {
	defer auth.SetPasswordCost(0)

	auth.SetPasswordCost(bcrypt.MinCost)
	auth.SetPasswordCost(bcrypt.MaxCost + 1)

	hash, err := auth.HashPassword("pw")
	assert.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	assert.NoError(t, err)
	assert.Greater(t, cost, bcrypt.MinCost)
}
