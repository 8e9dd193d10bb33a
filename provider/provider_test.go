package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/custodian/client"
	"github.com/brojonat/custodian/service/config"
	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/surface"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 10 * time.Millisecond

// fakeWallet plays the custodial wallet service API.
type fakeWallet struct {
	mu sync.Mutex

	accounts     []string
	accountCalls int

	converted      string
	convertBodies  []map[string]string
	authorizations []client.AuthorizeRequest

	statuses  []string
	hash      string
	pollError bool
	polls     int
}

func (f *fakeWallet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/api/solana/accounts":
		f.accountCalls++
		json.NewEncoder(w).Encode(map[string]interface{}{"accounts": f.accounts})

	case r.URL.Path == "/api/solana/convertToWalletTx":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.convertBodies = append(f.convertBodies, body)
		json.NewEncoder(w).Encode(map[string]string{"message": f.converted})

	case r.URL.Path == "/api/solana/authz" && r.Method == "POST":
		var body client.AuthorizeRequest
		json.NewDecoder(r.Body).Decode(&body)
		f.authorizations = append(f.authorizations, body)
		json.NewEncoder(w).Encode(map[string]string{"authorizationId": "auth-1"})

	case r.URL.Path == "/api/solana/authz" && r.Method == "GET":
		f.polls++
		if f.pollError {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "backend unavailable"})
			return
		}
		status := client.StatusPending
		if len(f.statuses) > 0 {
			i := f.polls - 1
			if i >= len(f.statuses) {
				i = len(f.statuses) - 1
			}
			status = f.statuses[i]
		}
		resp := client.Authorization{AuthorizationID: r.URL.Query().Get("authorizationId"), Status: status}
		if status == client.StatusApproved {
			resp.TransactionHash = f.hash
		}
		json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeWallet) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeWallet) setStatuses(hash string, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash = hash
	f.statuses = statuses
}

func (f *fakeWallet) failPolls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollError = true
}

func (f *fakeWallet) authorizeRequests() []client.AuthorizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.AuthorizeRequest(nil), f.authorizations...)
}

func (f *fakeWallet) setConverted(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converted = message
}

func (f *fakeWallet) convertRequests() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.convertBodies...)
}

func (f *fakeWallet) accountCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountCalls
}

type harness struct {
	provider *Provider
	wallet   *fakeWallet
	server   *httptest.Server
	surface  *surface.Memory
	channel  *surface.LocalChannel
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv(config.EnvAppID, "")
	t.Setenv(config.EnvServerURL, "")

	wallet := &fakeWallet{accounts: []string{"addr1", "addr2"}}
	server := httptest.NewServer(wallet)
	t.Cleanup(server.Close)

	h := &harness{
		wallet:   wallet,
		server:   server,
		surface:  surface.NewMemory(),
		channel:  surface.NewLocalChannel(),
		registry: prometheus.NewRegistry(),
	}

	p, err := New(Options{
		Network:      string(config.Localnet),
		Server:       server.URL,
		AppID:        "app-1",
		Origin:       "https://dapp.example.com",
		Surface:      h.surface,
		Messages:     h.channel,
		PollInterval: testPollInterval,
		Metrics:      metrics.NewMetrics(h.registry),
	})
	require.NoError(t, err)
	h.provider = p
	return h
}

// onSignIn makes the sign-in page reply with msg as soon as it is shown.
func (h *harness) onSignIn(msg surface.Message) {
	h.surface.OnAttach(func(o surface.Overlay) {
		if strings.Contains(o.URL(), "/authn?") {
			h.channel.Post(surface.ReplyEvent(o.URL()), msg)
		}
	})
}

// signInEvent returns the event the most recently shown sign-in page replies on.
func (h *harness) signInEvent() string {
	event := ""
	for _, entry := range h.surface.History() {
		if u, ok := strings.CutPrefix(entry, "attach "); ok && strings.Contains(u, "/authn?") {
			event = surface.ReplyEvent(u)
		}
	}
	return event
}

func (h *harness) approveSignIn(addr string) {
	h.onSignIn(surface.Message{
		Origin: h.server.URL,
		Type:   surface.TypeChallengeResponse,
		Code:   "code-1",
		Addr:   addr,
	})
}

func (h *harness) attachCount(fragment string) int {
	n := 0
	for _, entry := range h.surface.History() {
		if strings.HasPrefix(entry, "attach ") && strings.Contains(entry, fragment) {
			n++
		}
	}
	return n
}

func TestNew_UnsupportedNetwork(t *testing.T) {
	for _, network := range []string{"", "moonnet", "Mainnet"} {
		p, err := New(Options{Network: network})
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrUnsupportedNetwork, network)
	}
}

func TestNew_Testnet(t *testing.T) {
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvAppID, "")

	p, err := New(Options{Network: "testnet"})
	require.NoError(t, err)

	assert.Equal(t, "https://api.testnet.solana.com", p.RPCURL())
	assert.Equal(t, config.Testnet.DefaultServer(), p.Server())
	assert.Equal(t, config.Testnet, p.Network())
	assert.False(t, p.IsConnected())
}

func TestNew_ServerPrecedence(t *testing.T) {
	t.Setenv(config.EnvServerURL, "https://env.example.com")
	t.Setenv(config.EnvAppID, "")

	for _, network := range config.Networks() {
		p, err := New(Options{Network: string(network), Server: "https://explicit.example.com/"})
		require.NoError(t, err)
		assert.Equal(t, "https://explicit.example.com", p.Server())

		p, err = New(Options{Network: string(network)})
		require.NoError(t, err)
		if d := network.DefaultServer(); d != "" {
			assert.Equal(t, d, p.Server())
		} else {
			assert.Equal(t, "https://env.example.com", p.Server())
		}
	}

	t.Setenv(config.EnvServerURL, "")
	p, err := New(Options{Network: string(config.Localnet)})
	require.NoError(t, err)
	assert.Empty(t, p.Server())
}

func TestNew_AppIDAndSession(t *testing.T) {
	t.Setenv(config.EnvAppID, "")
	p, err := New(Options{Network: "devnet", AppID: "passed"})
	require.NoError(t, err)
	assert.Equal(t, "passed", p.AppID())
	assert.Equal(t, "passed", p.SessionID())

	t.Setenv(config.EnvAppID, "from-env")
	p, err = New(Options{Network: "devnet", AppID: "passed"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.AppID())

	t.Setenv(config.EnvAppID, "")
	p, err = New(Options{Network: "devnet"})
	require.NoError(t, err)
	assert.Empty(t, p.AppID())
	_, err = uuid.Parse(p.SessionID())
	assert.NoError(t, err)
}

func TestNew_RPCOverride(t *testing.T) {
	p, err := New(Options{Network: "mainnet-beta", RPCURL: "https://rpc.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", p.RPCURL())
}
