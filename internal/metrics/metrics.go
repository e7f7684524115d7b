package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// VaultOperations counts credential store operations by outcome
	VaultOperations *prometheus.CounterVec
	// VaultRecords tracks the record count per store backend
	VaultRecords *prometheus.GaugeVec
	// VaultSubscribers tracks live snapshot subscriptions
	VaultSubscribers prometheus.Gauge
	// AuthAttempts counts sign-in/sign-up attempts by flow and outcome
	AuthAttempts *prometheus.CounterVec
	// PasswordsGenerated counts generator invocations by outcome
	PasswordsGenerated *prometheus.CounterVec
	// StrengthScores observes the score distribution of estimated passwords
	StrengthScores prometheus.Histogram
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint", "method"},
		),
		VaultOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vault_operations_total",
				Help:      "Total number of credential store operations",
			},
			[]string{"operation", "status"},
		),
		VaultRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vault_records",
				Help:      "Number of stored credential records",
			},
			[]string{"backend"},
		),
		VaultSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vault_subscribers",
				Help:      "Number of live snapshot subscriptions",
			},
		),
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of authentication attempts",
			},
			[]string{"flow", "outcome"},
		),
		PasswordsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passwords_generated_total",
				Help:      "Total number of password generation requests",
			},
			[]string{"status"},
		),
		StrengthScores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "strength_scores",
				Help:      "Distribution of password strength scores",
				Buckets:   []float64{0, 1, 2, 3, 4},
			},
		),
	}

	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.ErrorCounter,
		m.VaultOperations,
		m.VaultRecords,
		m.VaultSubscribers,
		m.AuthAttempts,
		m.PasswordsGenerated,
		m.StrengthScores,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint, method string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint, method).Inc()
}

// RecordVaultOperation records a credential store operation
func (m *Metrics) RecordVaultOperation(operation, status string) {
	m.VaultOperations.WithLabelValues(operation, status).Inc()
}

// SetVaultRecords sets the stored record count for a backend
func (m *Metrics) SetVaultRecords(backend string, count int) {
	m.VaultRecords.WithLabelValues(backend).Set(float64(count))
}

// IncVaultSubscribers increments the live subscription gauge
func (m *Metrics) IncVaultSubscribers() {
	m.VaultSubscribers.Inc()
}

// DecVaultSubscribers decrements the live subscription gauge
func (m *Metrics) DecVaultSubscribers() {
	m.VaultSubscribers.Dec()
}

// RecordAuthAttempt records an authentication attempt
func (m *Metrics) RecordAuthAttempt(flow, outcome string) {
	m.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

// RecordPasswordGenerated records a generator invocation
func (m *Metrics) RecordPasswordGenerated(status string) {
	m.PasswordsGenerated.WithLabelValues(status).Inc()
}

// RecordStrengthScore observes an estimated strength score
func (m *Metrics) RecordStrengthScore(score int) {
	m.StrengthScores.Observe(float64(score))
}
