package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware creates middleware that records HTTP request metrics.
// The handlerName parameter should be a constant identifier for the endpoint (e.g., "/messages").
func HTTPMetricsMiddleware(m *Metrics, handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     200,
			}

			next.ServeHTTP(wrapped, r)

			if m != nil {
				m.RecordHTTPRequest(handlerName, r.Method, wrapped.statusCode, time.Since(start).Seconds())
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying WriteHeader.
func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RoundTripper records wallet backend request metrics for an http.Client.
// Requests are labeled by URL path, which for the backend API is a small,
// fixed set (query strings carry the session code and are not recorded).
type RoundTripper struct {
	Next    http.RoundTripper
	Metrics *Metrics
}

// InstrumentClient returns a copy of c whose transport records metrics.
// A nil client is treated as a client with default settings.
func InstrumentClient(c *http.Client, m *Metrics) *http.Client {
	if c == nil {
		c = &http.Client{Timeout: 30 * time.Second}
	}
	if m == nil {
		return c
	}
	instrumented := *c
	instrumented.Transport = &RoundTripper{Next: c.Transport, Metrics: m}
	return &instrumented
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	next := rt.Next
	if next == nil {
		next = http.DefaultTransport
	}

	start := time.Now()
	resp, err := next.RoundTrip(req)

	if rt.Metrics != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		rt.Metrics.RecordBackendRequest(req.URL.Path, req.Method, status, time.Since(start).Seconds())
	}

	return resp, err
}
