package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPasswordHash returns a hash no password matches, computed once at the
// current cost.
func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		h, err := HashPassword(uuid.NewString())
		if err == nil {
			dummyHash = h
		}
	})
	return dummyHash
}

// LoginResult is the outcome of a successful login
type LoginResult struct {
	Token   string
	Account AccountSnapshot
}

type Auther struct {
	accounts     AccountFinder
	passwords    PasswordAuthenticator
	tokenService *TokenService
	tokenTTL     time.Duration
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(accounts AccountFinder, tokens *TokenService, opts Config) *Auther {
	ttl := opts.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Auther{
		accounts:     accounts,
		passwords:    bcryptPasswords{},
		tokenService: tokens,
		tokenTTL:     ttl,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithPasswordAuthenticator replaces the bcrypt comparison
func (s *Auther) WithPasswordAuthenticator(p PasswordAuthenticator) *Auther {
	if p != nil {
		s.passwords = p
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokenService
}

// TokenTTL returns the access token lifetime
func (s *Auther) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Login checks identifier, a username or an email, and password. Unknown
// identifiers and wrong passwords both fail with ErrBadCredentials. The
// activation state is only looked at once the password matched.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)

	account, err := findByIdentifier(ctx, s.accounts, identifier)
	if err != nil {
		if isNotFound(err) {
			// keep the response time of unknown identifiers in line with
			// wrong passwords
			_ = s.passwords.ComparePasswordAndHash(password, dummyPasswordHash())
			s.loginFailed(ctx, 0, identifier, "unknown_identifier")
			return nil, ErrBadCredentials
		}
		s.logger.Error("login account lookup failed", "error", err)
		return nil, internalError(err, "failed to load account")
	}

	if err := s.passwords.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if IsKind(err, KindBadCredentials) {
			s.loginFailed(ctx, account.ID, identifier, "password_mismatch")
			return nil, ErrBadCredentials
		}
		s.logger.Error("login password comparison failed", "account_id", account.ID, "error", err)
		return nil, internalError(err, "failed to verify password")
	}

	if !account.IsActivated() {
		s.loginFailed(ctx, account.ID, identifier, "not_activated")
		return nil, ErrAccountDisabled
	}

	snapshot := account.Snapshot()
	token, err := s.tokenService.Issue(snapshot, s.tokenTTL)
	if err != nil {
		s.logger.Error("login token issue failed", "account_id", account.ID, "error", err)
		return nil, internalError(err, "failed to issue access token")
	}

	s.logger.Info("login succeeded", "account_id", account.ID)
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID,
	})

	return &LoginResult{Token: token, Account: snapshot}, nil
}

func (s *Auther) loginFailed(ctx context.Context, accountID int64, identifier, reason string) {
	s.logger.Info("login failed", "reason", reason, "account_id", accountID)
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		AccountID: accountID,
		Metadata: map[string]any{
			"identifier": identifier,
			"reason":     reason,
		},
	})
}
