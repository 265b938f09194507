package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-planner-auth"
	"github.com/goliatone/go-planner-auth/notify"
)

func TestMetrics_RecordActivity(t *testing.T) {
	m := NewMetrics()

	require.NoError(t, m.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, m.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, m.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLoginFailure}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.activityEvents.WithLabelValues(string(auth.ActivityEventLoginSuccess))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activityEvents.WithLabelValues(string(auth.ActivityEventLoginFailure))))
}

func TestMetrics_TokenFailuresAndNotifications(t *testing.T) {
	m := NewMetrics()

	m.TokenFailure(auth.TokenFailureExpired)
	m.NotificationResult(notify.KindActivation, notify.ResultSent)
	m.NotificationResult(notify.KindActivation, notify.ResultFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("activation", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("activation", "failed")))
}

func TestMetrics_TokenServiceObserver(t *testing.T) {
	m := NewMetrics()
	tokens := auth.NewTokenService([]byte("secret"), auth.WithFailureObserver(m.TokenFailure))

	assert.False(t, tokens.Verify("garbage"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenFailures.WithLabelValues("malformed")))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/ping", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "planner_auth_http_requests_total")
}
