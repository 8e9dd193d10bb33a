package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("getAccounts", "success", 0.1)
	m.RecordRequest("getAccounts", "success", 0.2)
	m.RecordRequest("signTransaction", "error", 0.0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("getAccounts", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("signTransaction", "error")))
}

func TestRecordAuthorization(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthorization("approved", 3, 3.2)
	m.RecordHandshake("canceled")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authorizationsTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handshakesTotal.WithLabelValues("canceled")))
}

func TestInstrumentClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	m := NewMetrics(prometheus.NewRegistry())
	c := InstrumentClient(nil, m)

	resp, err := c.Get(server.URL + "/api/solana/accounts?code=secret")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.backendRequestsTotal.WithLabelValues("/api/solana/accounts", "GET", "4xx")))
}

func TestInstrumentClient_NilMetrics(t *testing.T) {
	base := &http.Client{}
	assert.Same(t, base, InstrumentClient(base, nil))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := HTTPMetricsMiddleware(m, "/messages")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/messages/message", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/messages", "POST", "2xx")))
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(204))
	assert.Equal(t, "3xx", statusCodeToString(301))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(503))
	assert.Equal(t, "unknown", statusCodeToString(0))
}
