package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the provider.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Provider Metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	handshakesTotal         *prometheus.CounterVec
	authorizationsTotal     *prometheus.CounterVec
	authorizationPolls      *prometheus.HistogramVec
	authorizationDuration   *prometheus.HistogramVec

	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Wallet Backend Metrics
	backendRequestsTotal   *prometheus.CounterVec
	backendRequestDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
	natsMessagesReceived  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Provider Metrics
		providerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of provider requests by method and status",
			},
			[]string{"method", "status"},
		),
		providerRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_request_duration_seconds",
				Help:    "Duration of provider requests in seconds, including user approval time",
				Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"method"},
		),
		handshakesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_handshakes_total",
				Help: "Total number of session handshakes by outcome",
			},
			[]string{"outcome"},
		),
		authorizationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_authorizations_total",
				Help: "Total number of transaction authorizations by outcome",
			},
			[]string{"outcome"},
		),
		authorizationPolls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_authorization_polls",
				Help:    "Number of status polls issued per authorization",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		authorizationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_authorization_duration_seconds",
				Help:    "Time from authorization creation to a terminal status",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Wallet Backend Metrics
		backendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_backend_requests_total",
				Help: "Total number of wallet backend HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		backendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_backend_request_duration_seconds",
				Help:    "Duration of wallet backend HTTP requests in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"path", "method"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
		natsMessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_received_total",
				Help: "Total number of cross-context messages received, by whether they matched a subscription",
			},
			[]string{"subject", "result"},
		),
	}
}

// Provider metric helpers

// RecordRequest records a provider request with duration.
func (m *Metrics) RecordRequest(method, status string, duration float64) {
	m.providerRequestsTotal.WithLabelValues(method, status).Inc()
	m.providerRequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordHandshake records a handshake outcome (approved, canceled, error).
func (m *Metrics) RecordHandshake(outcome string) {
	m.handshakesTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthorization records an authorization outcome with its poll count and duration.
func (m *Metrics) RecordAuthorization(outcome string, polls int, duration float64) {
	m.authorizationsTotal.WithLabelValues(outcome).Inc()
	m.authorizationPolls.WithLabelValues(outcome).Observe(float64(polls))
	m.authorizationDuration.WithLabelValues(outcome).Observe(duration)
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration. host labels the
// endpoint; never pass a full RPC URL.
func (m *Metrics) RecordRPCCall(method, status, host string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, host).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, host).Observe(duration)
}

// Wallet backend metric helpers

// RecordBackendRequest records an outgoing wallet backend request.
func (m *Metrics) RecordBackendRequest(path, method string, statusCode int, duration float64) {
	m.backendRequestsTotal.WithLabelValues(path, method, statusCodeToString(statusCode)).Inc()
	m.backendRequestDuration.WithLabelValues(path, method).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// RecordNATSReceive records a received message and whether it matched.
func (m *Metrics) RecordNATSReceive(subject, result string) {
	m.natsMessagesReceived.WithLabelValues(subject, result).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
