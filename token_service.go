package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenFailure names the reason a token was rejected
type TokenFailure string

const (
	TokenFailureMalformed   TokenFailure = "malformed"
	TokenFailureSignature   TokenFailure = "signature"
	TokenFailureExpired     TokenFailure = "expired"
	TokenFailureUnsupported TokenFailure = "unsupported"
)

// TokenError carries the diagnostic reason behind a rejected token.
// Callers outside the package only ever see a boolean or ErrTokenInvalid.
type TokenError struct {
	Reason TokenFailure
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return "token " + string(e.Reason)
	}
	return fmt.Sprintf("token %s: %s", e.Reason, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// TokenService issues and verifies signed identity tokens. It keeps no
// record of what it issued: validity lives in the signature and expiry.
type TokenService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
	logger     Logger
	onFailure  func(TokenFailure)
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithClock overrides the time source, used by tests to move past expiry
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenIssuer sets the iss claim
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenLogger sets the logger used for validation diagnostics
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithFailureObserver registers a callback invoked for every rejected token
func WithFailureObserver(fn func(TokenFailure)) TokenServiceOption {
	return func(ts *TokenService) {
		ts.onFailure = fn
	}
}

// NewTokenService creates a TokenService signing with HS512
func NewTokenService(signingKey []byte, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey: signingKey,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue signs an access token embedding the account snapshot that expires
// after duration. The password field of the snapshot is always blanked.
func (ts *TokenService) Issue(account AccountSnapshot, duration time.Duration) (string, error) {
	return ts.issue(account, TokenPurposeAccess, "", duration)
}

// IssueReset signs a reset token bound to passwordHash, the hash the account
// holds now. Once the password changes the token no longer matches.
func (ts *TokenService) IssueReset(account AccountSnapshot, passwordHash string, duration time.Duration) (string, error) {
	return ts.issue(account, TokenPurposeReset, ts.Fingerprint(passwordHash), duration)
}

// Fingerprint returns a keyed digest of a password hash. It goes into reset
// tokens in place of the hash itself.
func (ts *TokenService) Fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, ts.signingKey)
	mac.Write([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)[:16])
}

// MatchesFingerprint reports whether fingerprint was computed from passwordHash
func (ts *TokenService) MatchesFingerprint(fingerprint, passwordHash string) bool {
	if fingerprint == "" {
		return false
	}
	return hmac.Equal([]byte(fingerprint), []byte(ts.Fingerprint(passwordHash)))
}

func (ts *TokenService) issue(account AccountSnapshot, purpose TokenPurpose, fingerprint string, duration time.Duration) (string, error) {
	if duration <= 0 {
		return "", goerrors.New("token duration must be positive", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"duration": duration.String()})
	}

	snapshot := account
	snapshot.Password = ""
	snapshot.Roles = append([]RoleRef(nil), account.Roles...)

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   strconv.FormatInt(snapshot.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
		User:        &snapshot,
		Purpose:     purpose,
		Fingerprint: fingerprint,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify reports whether the token is well formed, correctly signed, of a
// supported shape and not yet expired.
func (ts *TokenService) Verify(token string) bool {
	_, err := ts.Diagnose(token)
	return err == nil
}

// Decode returns the embedded account snapshot. It verifies the token
// again and fails with ErrTokenInvalid if it does not hold.
func (ts *TokenService) Decode(token string) (AccountSnapshot, error) {
	claims, err := ts.Diagnose(token)
	if err != nil {
		return AccountSnapshot{}, ErrTokenInvalid
	}
	return *claims.User, nil
}

// Diagnose parses and validates the token returning its claims, or a
// *TokenError naming why it was rejected.
func (ts *TokenService) Diagnose(raw string) (*JWTClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ts.reject(TokenFailureMalformed, errors.New("empty token"))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)

	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	})
	if err != nil {
		return nil, ts.reject(classifyParseError(err), err)
	}

	if !token.Valid {
		return nil, ts.reject(TokenFailureUnsupported, errors.New("token not valid"))
	}

	// exp is exclusive: a token is only valid while now < exp
	if !ts.now().Before(claims.Expires()) {
		return nil, ts.reject(TokenFailureExpired, jwt.ErrTokenExpired)
	}

	if claims.User == nil || claims.User.ID == 0 || claims.User.Email == "" {
		return nil, ts.reject(TokenFailureUnsupported, errors.New("missing account snapshot"))
	}

	switch claims.Purpose {
	case TokenPurposeAccess:
	case TokenPurposeReset:
		if claims.Fingerprint == "" {
			return nil, ts.reject(TokenFailureUnsupported, errors.New("reset token without fingerprint"))
		}
	default:
		return nil, ts.reject(TokenFailureUnsupported, fmt.Errorf("unknown token purpose %q", claims.Purpose))
	}

	return claims, nil
}

func (ts *TokenService) reject(reason TokenFailure, err error) error {
	ts.logger.Warn("token validation failed", "reason", string(reason))
	if ts.onFailure != nil {
		ts.onFailure(reason)
	}
	return &TokenError{Reason: reason, Err: err}
}

func classifyParseError(err error) TokenFailure {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return TokenFailureMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return TokenFailureSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenFailureExpired
	default:
		return TokenFailureUnsupported
	}
}
