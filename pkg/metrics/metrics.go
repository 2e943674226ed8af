// Package metrics exposes Prometheus collectors for the session layer.
//
// Metrics collected:
//   - authgate_verify_total: verify round-trips by outcome (ok, expired, invalid)
//   - authgate_redirects_total: domain router decisions by rule
//   - authgate_logins_total: login attempts by result
//   - authgate_logouts_total: logouts by whether the Auth Service was notified
//   - authgate_session_expired_signals_total: expiry signals raised
//   - authgate_expiry_prompts_active: 1 while the session-expired prompt is shown
//   - authgate_client_requests_total: outgoing requests by status class
//   - authgate_client_request_duration_seconds: outgoing request latency
//
// Every recording method is safe on a nil *Metrics, so components can take
// an optional collector without nil checks at every call site.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "authgate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "authgate",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors.
type Metrics struct {
	verifyTotal     *prometheus.CounterVec
	redirectsTotal  *prometheus.CounterVec
	loginsTotal     *prometheus.CounterVec
	logoutsTotal    *prometheus.CounterVec
	expirySignals   prometheus.Counter
	promptsActive   prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		verifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "verify_total",
			Help:        "Session verification round-trips by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		redirectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "redirects_total",
			Help:        "Domain router decisions by rule",
			ConstLabels: config.ConstLabels,
		}, []string{"rule"}),

		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "logins_total",
			Help:        "Login attempts by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		logoutsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "logouts_total",
			Help:        "Logouts by whether the Auth Service was notified",
			ConstLabels: config.ConstLabels,
		}, []string{"notified"}),

		expirySignals: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_expired_signals_total",
			Help:        "Session-expired signals raised",
			ConstLabels: config.ConstLabels,
		}),

		promptsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "expiry_prompts_active",
			Help:        "Whether the session-expired prompt is currently shown",
			ConstLabels: config.ConstLabels,
		}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "client_requests_total",
			Help:        "Outgoing HTTP requests by status class",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "client_request_duration_seconds",
			Help:        "Outgoing HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),
	}
}

// RecordVerify records a verify outcome: "ok", "expired" or "invalid".
func (m *Metrics) RecordVerify(outcome string) {
	if m != nil {
		m.verifyTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordRedirect records a domain router decision.
func (m *Metrics) RecordRedirect(rule string) {
	if m != nil {
		m.redirectsTotal.WithLabelValues(rule).Inc()
	}
}

// RecordLogin records a login attempt.
func (m *Metrics) RecordLogin(success bool) {
	if m != nil {
		result := "failure"
		if success {
			result = "success"
		}
		m.loginsTotal.WithLabelValues(result).Inc()
	}
}

// RecordLogout records a logout.
func (m *Metrics) RecordLogout(notified bool) {
	if m != nil {
		m.logoutsTotal.WithLabelValues(strconv.FormatBool(notified)).Inc()
	}
}

// RecordExpirySignal records a session-expired signal.
func (m *Metrics) RecordExpirySignal() {
	if m != nil {
		m.expirySignals.Inc()
	}
}

// SetPromptActive sets the prompt gauge.
func (m *Metrics) SetPromptActive(active bool) {
	if m != nil {
		if active {
			m.promptsActive.Set(1)
		} else {
			m.promptsActive.Set(0)
		}
	}
}

// RecordRequest records an outgoing request. status 0 means a transport error.
func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m != nil {
		m.requestsTotal.WithLabelValues(method, statusClass(status)).Inc()
		m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

// statusClass collapses a status code to "2xx".."5xx" to bound label cardinality.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
