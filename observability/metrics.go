// Package observability exposes Prometheus metrics for the auth service.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-planner-auth"
	"github.com/goliatone/go-planner-auth/notify"
)

const namespace = "planner_auth"

// Metrics holds the service collectors on a dedicated registry
type Metrics struct {
	registry       *prometheus.Registry
	activityEvents *prometheus.CounterVec
	tokenFailures  *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	httpInFlight   prometheus.Gauge
}

var _ auth.ActivitySink = (*Metrics)(nil)

// NewMetrics creates and registers the collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Account lifecycle and login events.",
		}, []string{"event"}),
		tokenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_failures_total",
			Help:      "Rejected tokens by reason.",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and outcome.",
		}, []string{"kind", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
	}

	m.registry.MustRegister(
		m.activityEvents,
		m.tokenFailures,
		m.notifications,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Record implements auth.ActivitySink
func (m *Metrics) Record(_ context.Context, event auth.ActivityEvent) error {
	m.activityEvents.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

// TokenFailure counts a rejected token. Pass it to auth.WithFailureObserver.
func (m *Metrics) TokenFailure(reason auth.TokenFailure) {
	m.tokenFailures.WithLabelValues(string(reason)).Inc()
}

// NotificationResult counts a notification outcome. Pass it to
// notify.WithResultObserver.
func (m *Metrics) NotificationResult(kind notify.Kind, result string) {
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

// Middleware records request count, latency and in flight requests. Mount it
// before ErrorTranslator so the translated status is observed.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = http.StatusInternalServerError
			}
		}

		route := c.Route().Path
		labels := []string{c.Method(), route, strconv.Itoa(status)}
		m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(labels...).Inc()

		return err
	}
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
