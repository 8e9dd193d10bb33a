package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Chain is the chain identifier the wallet service expects for Solana.
const Chain = "solana"

// Authorization status values reported by the wallet service.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"
)

// Authorization is the current state of a remote approval request.
type Authorization struct {
	AuthorizationID string `json:"authorizationId"`
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash,omitempty"`
}

// AuthorizeRequest is the body posted to start a remote approval.
type AuthorizeRequest struct {
	SessionID  string            `json:"sessionId"`
	Signatures map[string]string `json:"signatures"`
	Message    string            `json:"message"`
}

// Backend is the HTTP client for the custodial wallet service API.
type Backend struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBackend creates a new wallet service client.
func NewBackend(baseURL string, httpClient *http.Client, logger *slog.Logger) *Backend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Backend{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the wallet service origin this client talks to.
func (b *Backend) BaseURL() string {
	return b.baseURL
}

// AuthnURL is the page rendered in the sign-in overlay. challenge, when set,
// is echoed by the page so its reply can be routed back to this sign-in.
func (b *Backend) AuthnURL(origin, challenge string) string {
	q := url.Values{}
	q.Set("l6n", origin)
	q.Set("chain", Chain)
	if challenge != "" {
		q.Set("challenge", challenge)
	}
	return fmt.Sprintf("%s/authn?%s", b.baseURL, q.Encode())
}

// AuthzURL is the page rendered in the approval overlay for one authorization.
func (b *Backend) AuthzURL(authorizationID string) string {
	return fmt.Sprintf("%s/authz/%s/%s", b.baseURL, Chain, url.PathEscape(authorizationID))
}

// Accounts lists the addresses available to the session.
func (b *Backend) Accounts(ctx context.Context, code string) ([]string, error) {
	u := fmt.Sprintf("%s/api/%s/accounts?code=%s", b.baseURL, Chain, url.QueryEscape(code))

	var response struct {
		Accounts []string `json:"accounts"`
	}
	if err := b.do(ctx, "accounts", "GET", u, nil, &response); err != nil {
		return nil, err
	}

	b.logger.DebugContext(ctx, "fetched accounts", "count", len(response.Accounts))
	return response.Accounts, nil
}

// ConvertToWalletTx asks the wallet service to rewrite a hex message into
// one executed by the program wallet. It returns the converted hex message.
func (b *Backend) ConvertToWalletTx(ctx context.Context, code, sessionID, message string) (string, error) {
	u := fmt.Sprintf("%s/api/%s/convertToWalletTx?code=%s", b.baseURL, Chain, url.QueryEscape(code))
	reqBody := map[string]interface{}{
		"sessionId": sessionID,
		"message":   message,
	}

	var response struct {
		Message string `json:"message"`
	}
	if err := b.do(ctx, "convertToWalletTx", "POST", u, reqBody, &response); err != nil {
		return "", err
	}
	if response.Message == "" {
		return "", &TransportError{Op: "convertToWalletTx", StatusCode: http.StatusOK, Err: fmt.Errorf("response has no message")}
	}

	return response.Message, nil
}

// Authorize starts a remote approval and returns its identifier.
func (b *Backend) Authorize(ctx context.Context, code string, reqBody AuthorizeRequest) (string, error) {
	u := fmt.Sprintf("%s/api/%s/authz?code=%s", b.baseURL, Chain, url.QueryEscape(code))
	if reqBody.Signatures == nil {
		reqBody.Signatures = map[string]string{}
	}

	var response struct {
		AuthorizationID string `json:"authorizationId"`
	}
	if err := b.do(ctx, "authorize", "POST", u, reqBody, &response); err != nil {
		return "", err
	}
	if response.AuthorizationID == "" {
		return "", &TransportError{Op: "authorize", StatusCode: http.StatusOK, Err: fmt.Errorf("response has no authorizationId")}
	}

	b.logger.DebugContext(ctx, "authorization created", "authorization_id", response.AuthorizationID)
	return response.AuthorizationID, nil
}

// AuthorizationStatus reads the current status of an authorization.
func (b *Backend) AuthorizationStatus(ctx context.Context, authorizationID string) (*Authorization, error) {
	u := fmt.Sprintf("%s/api/%s/authz?authorizationId=%s", b.baseURL, Chain, url.QueryEscape(authorizationID))

	var auth Authorization
	if err := b.do(ctx, "authorizationStatus", "GET", u, nil, &auth); err != nil {
		return nil, err
	}
	if auth.AuthorizationID == "" {
		auth.AuthorizationID = authorizationID
	}

	return &auth, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (b *Backend) do(ctx context.Context, op, method, u string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseErrorResponse(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func parseErrorResponse(op string, resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: errResp.Error}
}
