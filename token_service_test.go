package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-planner-auth"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func testSnapshot() auth.AccountSnapshot {
	return auth.AccountSnapshot{
		ID:       42,
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2",
		Roles:    []auth.RoleRef{{Name: auth.RoleUser}, {Name: auth.RoleAdmin}},
	}
}

type recordingLogger struct {
	messages []string
	args     [][]any
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record(msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record(msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record(msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record(msg, args) }

func (l *recordingLogger) record(msg string, args []any) {
	l.messages = append(l.messages, msg)
	l.args = append(l.args, args)
}

func TestTokenServiceRoundTrip(t *testing.T) {
	clock := newClock()
	ts := auth.NewTokenService([]byte("secret"), auth.WithClock(clock.Now), auth.WithTokenLogger(&recordingLogger{}))

	token, err := ts.Issue(testSnapshot(), time.Hour)
	require.NoError(t, err)
	assert.True(t, ts.Verify(token))

	snapshot, err := ts.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snapshot.ID)
	assert.Equal(t, "alice", snapshot.Username)
	assert.Equal(t, "alice@example.com", snapshot.Email)
	assert.Equal(t, []string{auth.RoleUser, auth.RoleAdmin}, snapshot.RoleNames())
}

func TestTokenServiceNeverCarriesPassword(t *testing.T) {
	ts := auth.NewTokenService([]byte("secret"), auth.WithTokenLogger(&recordingLogger{}))

	token, err := ts.Issue(testSnapshot(), time.Hour)
	require.NoError(t, err)

	snapshot, err := ts.Decode(token)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Password)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "hunter2")
	assert.NotContains(t, string(payload), "password")
}

func TestTokenServiceClaims(t *testing.T) {
	clock := newClock()
	ts := auth.NewTokenService([]byte("secret"),
		auth.WithClock(clock.Now),
		auth.WithTokenIssuer("planner"),
		auth.WithTokenLogger(&recordingLogger{}),
	)

	token, err := ts.Issue(testSnapshot(), 30*time.Minute)
	require.NoError(t, err)

	claims, err := ts.Diagnose(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "planner", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, clock.now, claims.IssuedAt(), 0)
	assert.WithinDuration(t, clock.now.Add(30*time.Minute), claims.Expires(), 0)
}

func TestTokenServiceExpiry(t *testing.T) {
	clock := newClock()
	var failures []auth.TokenFailure
	ts := auth.NewTokenService([]byte("secret"),
		auth.WithClock(clock.Now),
		auth.WithTokenLogger(&recordingLogger{}),
		auth.WithFailureObserver(func(r auth.TokenFailure) { failures = append(failures, r) }),
	)

	token, err := ts.Issue(testSnapshot(), time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Second)
	assert.True(t, ts.Verify(token))

	clock.now = clock.now.Add(time.Second)
	assert.False(t, ts.Verify(token), "a token is invalid at its expiry instant")

	_, err = ts.Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	assert.Equal(t, []auth.TokenFailure{auth.TokenFailureExpired, auth.TokenFailureExpired}, failures)
}

func TestTokenServiceRejections(t *testing.T) {
	clock := newClock()
	ts := auth.NewTokenService([]byte("secret"), auth.WithClock(clock.Now), auth.WithTokenLogger(&recordingLogger{}))

	valid, err := ts.Issue(testSnapshot(), time.Hour)
	require.NoError(t, err)

	other := auth.NewTokenService([]byte("other-secret"), auth.WithClock(clock.Now))
	foreign, err := other.Issue(testSnapshot(), time.Hour)
	require.NoError(t, err)

	hs256 := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
		User:             &auth.AccountSnapshot{ID: 1, Email: "a@b.c"},
	})
	wrongAlg, err := hs256.SignedString([]byte("secret"))
	require.NoError(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
	})
	missingSnapshot, err := noUser.SignedString([]byte("secret"))
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.JWTClaims{
		User: &auth.AccountSnapshot{ID: 1, Email: "a@b.c"},
	})
	withoutExpiry, err := noExp.SignedString([]byte("secret"))
	require.NoError(t, err)

	noPurpose := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
		User:             &auth.AccountSnapshot{ID: 1, Email: "a@b.c"},
	})
	withoutPurpose, err := noPurpose.SignedString([]byte("secret"))
	require.NoError(t, err)

	bareReset := jwt.NewWithClaims(jwt.SigningMethodHS512, &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour))},
		User:             &auth.AccountSnapshot{ID: 1, Email: "a@b.c"},
		Purpose:          auth.TokenPurposeReset,
	})
	resetWithoutFingerprint, err := bareReset.SignedString([]byte("secret"))
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + tamperPayload(t, parts[1]) + "." + parts[2]

	tests := []struct {
		name   string
		token  string
		reason auth.TokenFailure
	}{
		{"empty", "", auth.TokenFailureMalformed},
		{"garbage", "not-a-token", auth.TokenFailureMalformed},
		{"foreign signature", foreign, auth.TokenFailureSignature},
		{"tampered payload", tampered, auth.TokenFailureSignature},
		{"unexpected algorithm", wrongAlg, auth.TokenFailureSignature},
		{"missing snapshot", missingSnapshot, auth.TokenFailureUnsupported},
		{"missing expiry", withoutExpiry, auth.TokenFailureUnsupported},
		{"missing purpose", withoutPurpose, auth.TokenFailureUnsupported},
		{"reset without fingerprint", resetWithoutFingerprint, auth.TokenFailureUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, ts.Verify(tt.token))

			_, err := ts.Diagnose(tt.token)
			var tokenErr *auth.TokenError
			require.ErrorAs(t, err, &tokenErr)
			assert.Equal(t, tt.reason, tokenErr.Reason)
		})
	}
}

func TestTokenServicePurpose(t *testing.T) {
	ts := auth.NewTokenService([]byte("secret"))

	access, err := ts.Issue(testSnapshot(), time.Hour)
	require.NoError(t, err)
	claims, err := ts.Diagnose(access)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenPurposeAccess, claims.Purpose)
	assert.Empty(t, claims.Fingerprint)

	reset, err := ts.IssueReset(testSnapshot(), "$2a$04$hash", 15*time.Minute)
	require.NoError(t, err)
	claims, err = ts.Diagnose(reset)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenPurposeReset, claims.Purpose)
	assert.True(t, ts.MatchesFingerprint(claims.Fingerprint, "$2a$04$hash"))
	assert.False(t, ts.MatchesFingerprint(claims.Fingerprint, "$2a$04$other"))
	assert.False(t, ts.MatchesFingerprint("", "$2a$04$hash"))
	assert.NotContains(t, decodeSegment(t, strings.Split(reset, ".")[1]), "$2a$04$hash")

	identity := auth.IdentityFromClaims(claims)
	assert.True(t, identity.IsReset())
	assert.Equal(t, claims.Fingerprint, identity.ResetFingerprint)

	other := auth.NewTokenService([]byte("other-secret"))
	assert.NotEqual(t, ts.Fingerprint("$2a$04$hash"), other.Fingerprint("$2a$04$hash"))
}

func TestTokenServiceLogsReasonOnly(t *testing.T) {
	logger := &recordingLogger{}
	ts := auth.NewTokenService([]byte("secret"), auth.WithTokenLogger(logger))

	assert.False(t, ts.Verify("abc.def.ghi"))

	require.Len(t, logger.messages, 1)
	assert.Equal(t, "token validation failed", logger.messages[0])
	assert.Equal(t, []any{"reason", string(auth.TokenFailureMalformed)}, logger.args[0])
}

func TestTokenServiceIssueRejectsNonPositiveTTL(t *testing.T) {
	ts := auth.NewTokenService([]byte("secret"))

	_, err := ts.Issue(testSnapshot(), 0)
	assert.Error(t, err)
}

func tamperPayload(t *testing.T, segment string) string {
	t.Helper()

	raw, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(raw, &claims))
	claims["user"].(map[string]any)["username"] = "mallory"

	out, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(out)
}

func decodeSegment(t *testing.T, segment string) string {
	t.Helper()

	raw, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)
	return string(raw)
}
