package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthnURL(t *testing.T) {
	b := NewBackend("https://wallet.example.com", nil, nil)
	u, err := url.Parse(b.AuthnURL("https://dapp.example.com:8443", "nonce-1"))
	require.NoError(t, err)

	assert.Equal(t, "/authn", u.Path)
	assert.Equal(t, "https://dapp.example.com:8443", u.Query().Get("l6n"))
	assert.Equal(t, "solana", u.Query().Get("chain"))
	assert.Equal(t, "nonce-1", u.Query().Get("challenge"))

	u, err = url.Parse(b.AuthnURL("https://dapp.example.com", ""))
	require.NoError(t, err)
	assert.False(t, u.Query().Has("challenge"))
}

func TestAuthzURL(t *testing.T) {
	b := NewBackend("https://wallet.example.com", nil, nil)
	assert.Equal(t, "https://wallet.example.com/authz/solana/auth-1", b.AuthzURL("auth-1"))
}

func TestAccounts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/solana/accounts", r.URL.Path)
		assert.Equal(t, "code-1", r.URL.Query().Get("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": []string{"addr1", "addr2"},
		})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	accounts, err := b.Accounts(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"addr1", "addr2"}, accounts)
}

func TestAccounts_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "session expired"})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	accounts, err := b.Accounts(context.Background(), "stale")
	require.Error(t, err)
	assert.Nil(t, accounts)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Contains(t, err.Error(), "session expired")
}

func TestAccounts_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	b := NewBackend(server.URL, nil, nil)
	_, err := b.Accounts(context.Background(), "code")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "accounts", te.Op)
	assert.Equal(t, 0, te.StatusCode)
	assert.NotNil(t, te.Unwrap())
}

func TestConvertToWalletTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/solana/convertToWalletTx", r.URL.Path)
		assert.Equal(t, "code-1", r.URL.Query().Get("code"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "session-1", body["sessionId"])
		assert.Equal(t, "abcd", body["message"])

		json.NewEncoder(w).Encode(map[string]string{"message": "ef01"})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	msg, err := b.ConvertToWalletTx(context.Background(), "code-1", "session-1", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "ef01", msg)
}

func TestConvertToWalletTx_EmptyMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	_, err := b.ConvertToWalletTx(context.Background(), "code-1", "session-1", "abcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message")
}

func TestAuthorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/solana/authz", r.URL.Path)
		assert.Equal(t, "code-1", r.URL.Query().Get("code"))

		var body AuthorizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "session-1", body.SessionID)
		assert.Equal(t, "abcd", body.Message)
		assert.Equal(t, map[string]string{"addr1": "00ff"}, body.Signatures)

		json.NewEncoder(w).Encode(map[string]string{"authorizationId": "auth-1"})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	id, err := b.Authorize(context.Background(), "code-1", AuthorizeRequest{
		SessionID:  "session-1",
		Signatures: map[string]string{"addr1": "00ff"},
		Message:    "abcd",
	})
	require.NoError(t, err)
	assert.Equal(t, "auth-1", id)
}

func TestAuthorize_NilSignaturesSentAsObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{}`, string(body["signatures"]))

		json.NewEncoder(w).Encode(map[string]string{"authorizationId": "auth-2"})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	id, err := b.Authorize(context.Background(), "code-1", AuthorizeRequest{SessionID: "s", Message: "00"})
	require.NoError(t, err)
	assert.Equal(t, "auth-2", id)
}

func TestAuthorizationStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/solana/authz", r.URL.Path)
		assert.Equal(t, "auth-1", r.URL.Query().Get("authorizationId"))

		json.NewEncoder(w).Encode(map[string]string{
			"status":          StatusApproved,
			"transactionHash": "hash-1",
		})
	}))
	defer server.Close()

	b := NewBackend(server.URL, nil, nil)
	auth, err := b.AuthorizationStatus(context.Background(), "auth-1")
	require.NoError(t, err)
	assert.Equal(t, "auth-1", auth.AuthorizationID)
	assert.Equal(t, StatusApproved, auth.Status)
	assert.Equal(t, "hash-1", auth.TransactionHash)
}

func TestTransportError_Messages(t *testing.T) {
	assert.Equal(t, "op: request failed with status 500", (&TransportError{Op: "op", StatusCode: 500}).Error())
	assert.Equal(t, "op: request failed with status 400: bad", (&TransportError{Op: "op", StatusCode: 400, Body: "bad"}).Error())
	assert.Equal(t, "op: boom", (&TransportError{Op: "op", Err: errors.New("boom")}).Error())
	assert.Equal(t, "op: status 200: boom", (&TransportError{Op: "op", StatusCode: 200, Err: errors.New("boom")}).Error())
}
