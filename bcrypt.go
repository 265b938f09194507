package auth

import (
	"errors"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost used when no override is set
const DefaultPasswordCost = 12

var costOverride atomic.Int64

// SetPasswordCost overrides the bcrypt cost for every hash computed after
// the call. Values outside bcrypt's range reset to the build default.
func SetPasswordCost(cost int) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		costOverride.Store(0)
		return
	}
	costOverride.Store(int64(cost))
}

func currentCost() int {
	if c := costOverride.Load(); c > 0 {
		return int(c)
	}
	return DefaultPasswordCost
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), currentCost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrBadCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}
	return nil
}

type bcryptPasswords struct{}

func (bcryptPasswords) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (bcryptPasswords) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
