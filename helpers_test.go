package auth

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type testConfig struct {
	signingKey   string
	accessTTL    time.Duration
	resetTTL     time.Duration
	cookieName   string
	cookieDomain string
	clientURL    string
	defaultRole  string
	publicRoutes []string
	routePrefix  string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:   "test-signing-key",
		accessTTL:    time.Hour,
		resetTTL:     15 * time.Minute,
		cookieName:   "jwt",
		cookieDomain: "localhost",
		clientURL:    "http://localhost:4200",
		defaultRole:  RoleUser,
		routePrefix:  "/auth",
	}
}

func (c *testConfig) GetSigningKey() string            { return c.signingKey }
func (c *testConfig) GetAccessTokenTTL() time.Duration { return c.accessTTL }
func (c *testConfig) GetResetTokenTTL() time.Duration  { return c.resetTTL }
func (c *testConfig) GetCookieName() string            { return c.cookieName }
func (c *testConfig) GetCookieDomain() string          { return c.cookieDomain }
func (c *testConfig) GetClientURL() string             { return c.clientURL }
func (c *testConfig) GetDefaultRole() string           { return c.defaultRole }
func (c *testConfig) GetPublicRoutes() []string        { return c.publicRoutes }
func (c *testConfig) GetRoutePrefix() string           { return c.routePrefix }
func (c *testConfig) GetBcryptCost() int               { return bcrypt.MinCost }

type sentNotification struct {
	Recipient string
	Username  string
	Token     string
}

type recordingNotifier struct {
	mu          sync.Mutex
	activations []sentNotification
	resets      []sentNotification
	err         error
}

func (n *recordingNotifier) NotifyActivation(_ context.Context, recipient, username, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activations = append(n.activations, sentNotification{recipient, username, token})
	return n.err
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, recipient, username, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentNotification{recipient, username, token})
	return n.err
}

func (n *recordingNotifier) lastActivation(t *testing.T) sentNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.activations, "no activation notification sent")
	return n.activations[len(n.activations)-1]
}

func (n *recordingNotifier) lastReset(t *testing.T) sentNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets, "no reset notification sent")
	return n.resets[len(n.resets)-1]
}

type capturingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// testEnv wires the lifecycle against an in-memory store
type testEnv struct {
	cfg      *testConfig
	db       *bun.DB
	repo     RepositoryManager
	tokens   *TokenService
	auther   *Auther
	notifier *recordingNotifier
	sink     *capturingSink
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	SetPasswordCost(bcrypt.MinCost)
	t.Cleanup(func() { SetPasswordCost(0) })

	env := &testEnv{
		cfg:      newTestConfig(),
		db:       newTestDB(t),
		notifier: &recordingNotifier{},
		sink:     &capturingSink{},
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env.repo = NewRepositoryManager(env.db)
	require.NoError(t, Bootstrap(context.Background(), env.repo, env.db))

	env.tokens = NewTokenService([]byte(env.cfg.signingKey),
		WithClock(env.clock),
		WithTokenLogger(silentLogger{}),
	)
	env.auther = NewAuthenticator(env.repo.Accounts(), env.tokens, env.cfg).
		WithLogger(silentLogger{}).
		WithActivitySink(env.sink)

	return env
}

func (e *testEnv) clock() time.Time {
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *testEnv) register(t *testing.T, username, email, password string) string {
	t.Helper()

	h := RegisterAccountHandler{
		repo:        e.repo,
		notifier:    e.notifier,
		activity:    e.sink,
		logger:      silentLogger{},
		defaultRole: e.cfg.defaultRole,
	}
	require.NoError(t, h.Execute(context.Background(), RegisterAccountMessage{
		Username: username,
		Email:    email,
		Password: password,
	}))

	return e.notifier.lastActivation(t).Token
}

func (e *testEnv) activate(t *testing.T, token string) {
	t.Helper()

	h := ActivateAccountHandler{repo: e.repo, activity: e.sink, logger: silentLogger{}}
	require.NoError(t, h.Execute(context.Background(), ActivateAccountMessage{Token: token}))
}

func (e *testEnv) newApp(t *testing.T, opts ...AuthControllerOption) (*fiber.App, *RouteAuthenticator) {
	t.Helper()

	httpAuth := NewHTTPAuthenticator(e.tokens, e.cfg).WithLogger(silentLogger{})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(ErrorTranslator(silentLogger{}))
	app.Use(httpAuth.Middleware())

	base := []AuthControllerOption{
		WithRepositoryManager(e.repo),
		WithAuther(e.auther),
		WithHTTPAuthenticator(httpAuth),
		WithNotifier(e.notifier),
		WithControllerActivitySink(e.sink),
		WithControllerLogger(silentLogger{}),
		WithLifecycleConfig(e.cfg),
	}
	RegisterAuthRoutes(app.Group(e.cfg.routePrefix), append(base, opts...)...)

	return app, httpAuth
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()

	res, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()

	return res, string(body)
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func newTextRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return req
}

func accessCookie(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	require.FailNow(t, "cookie not set", name)
	return nil
}
