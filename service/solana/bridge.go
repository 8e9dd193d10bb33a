package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/custodian/client"
	"github.com/brojonat/custodian/service/metrics"
)

// TransportError is returned when an RPC exchange fails below the JSON-RPC
// layer, including non-2xx responses.
type TransportError = client.TransportError

// rpcRequest is the JSON-RPC 2.0 envelope sent to the public endpoint.
type rpcRequest struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCBridge forwards read-only JSON-RPC calls to a public Solana endpoint.
// It never needs a wallet session.
type RPCBridge struct {
	endpoint   string
	host       string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewRPCBridge creates a bridge to the given JSON-RPC endpoint.
// If m is nil, no metrics will be recorded.
func NewRPCBridge(endpoint string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *RPCBridge {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &RPCBridge{
		endpoint:   endpoint,
		host:       endpointHost(endpoint),
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Endpoint returns the JSON-RPC URL the bridge posts to.
func (b *RPCBridge) Endpoint() string {
	return b.endpoint
}

// endpointHost reduces an endpoint URL to its host for metric labels. Provider
// URLs often carry API keys in the path or query.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// Call posts method and params verbatim with id 1 and returns the raw
// "result" member of the response. When the response has no "result" member
// (for example a JSON-RPC error), the whole response body is returned.
func (b *RPCBridge) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	start := time.Now()
	out, err := b.call(ctx, method, params)

	status := "success"
	if err != nil {
		status = "error"
		b.logger.ErrorContext(ctx, "rpc call failed", "method", method, "error", err)
	}
	if b.metrics != nil {
		b.metrics.RecordRPCCall(method, status, b.host, time.Since(start).Seconds())
	}

	return out, err
}

func (b *RPCBridge) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, &TransportError{Op: method, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: method, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &TransportError{Op: method, StatusCode: resp.StatusCode, Body: string(raw), Err: err}
	}

	b.logger.DebugContext(ctx, "rpc call completed", "method", method, "bytes", len(raw))

	if result, ok := envelope["result"]; ok {
		return result, nil
	}
	return json.RawMessage(raw), nil
}
