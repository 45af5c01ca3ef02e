package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	DealsSubmitted   *prometheus.CounterVec
	InvitationsSent  *prometheus.CounterVec
	NotifyFailures   prometheus.Counter
	ChainTruncations prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
	AssistantTools   *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates a new Metrics instance registered on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance on a caller-supplied registry.
// Tests use this to avoid duplicate registration on the global registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		DealsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deals_submitted_total",
				Help: "Total number of deal submissions by upsert outcome",
			},
			[]string{"operation"}, // created, updated
		),
		InvitationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "client_invitations_total",
				Help: "Total number of client invitation attempts",
			},
			[]string{"outcome"}, // sent, reused, failed, skipped
		),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "notify_failures_total",
			Help: "Total number of failed deal-posted webhook notifications",
		}),
		ChainTruncations: factory.NewCounter(prometheus.CounterOpts{
			Name: "commission_chain_truncations_total",
			Help: "Total number of commission chains truncated by a missing snapshot",
		}),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		AssistantTools: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_tool_calls_total",
				Help: "Total number of assistant tool executions",
			},
			[]string{"tool"},
		),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // route pattern, not actual path

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordDealSubmitted increments the deal submission counter
func (m *Metrics) RecordDealSubmitted(operation string) {
	m.DealsSubmitted.WithLabelValues(operation).Inc()
}

// RecordInvitation increments the invitation counter
func (m *Metrics) RecordInvitation(outcome string) {
	m.InvitationsSent.WithLabelValues(outcome).Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordAssistantTool increments the assistant tool counter
func (m *Metrics) RecordAssistantTool(tool string) {
	m.AssistantTools.WithLabelValues(tool).Inc()
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}
