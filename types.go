package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger used across the package. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetAccessTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetCookieName() string
	GetCookieDomain() string
	GetClientURL() string
	GetDefaultRole() string
	GetPublicRoutes() []string
	GetRoutePrefix() string
	GetBcryptCost() int
}

// Notifier dispatches account notifications. Implementations must not block
// on delivery: the request that triggers a notification never waits for it.
type Notifier interface {
	NotifyActivation(ctx context.Context, recipient, username, activationToken string) error
	NotifyPasswordReset(ctx context.Context, recipient, username, resetToken string) error
}

// AccountFinder resolves accounts for login
type AccountFinder interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type noopNotifier struct{}

func (noopNotifier) NotifyActivation(context.Context, string, string, string) error {
	return nil
}

func (noopNotifier) NotifyPasswordReset(context.Context, string, string, string) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		var val any = "MISSING"
		if i+1 < len(args) {
			val = args[i+1]
		}
		fmt.Fprintf(&b, " %s=%v", key, val)
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
