// Package provider is a Solana wallet provider backed by a custodial wallet
// service. Applications ask it for accounts and for transactions to be signed
// and sent; the keys never leave the wallet service.
//
// Sign-in and transaction approval happen on the wallet service's own pages,
// shown through a surface.Surface. Those pages answer through a
// surface.MessageChannel. Read-only JSON-RPC calls go straight to the
// network's public endpoint and need no session.
package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/custodian/client"
	"github.com/brojonat/custodian/service/config"
	"github.com/brojonat/custodian/service/metrics"
	"github.com/brojonat/custodian/service/solana"
	"github.com/brojonat/custodian/service/surface"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// DefaultOrigin is reported to the wallet service when no caller origin is set.
const DefaultOrigin = "http://localhost"

// WalletProvider is the capability every chain-specific provider offers.
type WalletProvider interface {
	Connect(ctx context.Context) ([]string, error)
	Request(ctx context.Context, args RequestArguments) (any, error)
}

var _ WalletProvider = (*Provider)(nil)

// Options configures a Provider.
type Options struct {
	// Network is one of the supported networks (see config.Networks).
	Network string

	// Server is the wallet service origin. When empty it is resolved from the
	// network default and then CUSTODIAN_SERVER_URL.
	Server string

	// AppID identifies the application to the wallet service.
	// CUSTODIAN_APP_ID takes precedence.
	AppID string

	// Origin is the caller's origin, shown to the user on the sign-in page.
	Origin string

	// RPCURL overrides the network's public JSON-RPC endpoint.
	RPCURL string

	// Surface shows the wallet service's pages and Messages carries their
	// replies. Without both, sign-in and approval fail with ErrNoSurface.
	Surface  surface.Surface
	Messages surface.MessageChannel

	// PollInterval is how often a pending authorization is polled.
	PollInterval time.Duration

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Provider talks to the custodial wallet service on behalf of one application.
// It is safe for concurrent use.
type Provider struct {
	network      config.Network
	server       string
	origin       string
	appID        string
	sessionID    string
	pollInterval time.Duration

	backend  *client.Backend
	bridge   *solana.RPCBridge
	surface  surface.Surface
	messages surface.MessageChannel
	metrics  *metrics.Metrics
	logger   *slog.Logger

	session session
	connect singleflight.Group
	authz   *semaphore.Weighted
}

// New creates a provider. It fails with ErrUnsupportedNetwork when the
// network is missing or unknown.
func New(opts Options) (*Provider, error) {
	network, err := config.ParseNetwork(opts.Network)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	server := config.ResolveServer(network, opts.Server)
	appID := config.ResolveAppID(opts.AppID)
	sessionID := appID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	origin := opts.Origin
	if origin == "" {
		origin = DefaultOrigin
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}

	rpcURL := opts.RPCURL
	if rpcURL == "" {
		rpcURL = network.RPCURL()
	}

	backendHTTP := metrics.InstrumentClient(opts.HTTPClient, opts.Metrics)

	p := &Provider{
		network:      network,
		server:       server,
		origin:       origin,
		appID:        appID,
		sessionID:    sessionID,
		pollInterval: pollInterval,
		backend:      client.NewBackend(server, backendHTTP, logger),
		bridge:       solana.NewRPCBridge(rpcURL, opts.HTTPClient, opts.Metrics, logger),
		surface:      opts.Surface,
		messages:     opts.Messages,
		metrics:      opts.Metrics,
		logger:       logger,
		authz:        semaphore.NewWeighted(1),
	}

	logger.Debug("provider created",
		"network", network,
		"server", server,
		"rpc", rpcURL,
		"app_id", appID,
	)

	return p, nil
}

// Network returns the network the provider was created for.
func (p *Provider) Network() config.Network { return p.network }

// Server returns the resolved wallet service origin (possibly empty).
func (p *Provider) Server() string { return p.server }

// RPCURL returns the JSON-RPC endpoint read-only requests are sent to.
func (p *Provider) RPCURL() string { return p.bridge.Endpoint() }

// AppID returns the resolved application identifier (possibly empty).
func (p *Provider) AppID() string { return p.appID }

// SessionID is sent to the wallet service with conversion and authorization
// requests. It is the AppID when one is configured.
func (p *Provider) SessionID() string { return p.sessionID }

// IsConnected reports whether a sign-in has completed.
func (p *Provider) IsConnected() bool { return p.session.isConnected() }

// Connect signs in if needed and refreshes the account list.
func (p *Provider) Connect(ctx context.Context) ([]string, error) {
	out, err := p.Request(ctx, RequestArguments{Method: MethodConnect})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

// Accounts returns the session's accounts, fetching them when none are cached.
func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	out, err := p.Request(ctx, RequestArguments{Method: MethodGetAccounts})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

// SignAndSendTransaction has the wallet service sign and submit tx after the
// user approves it. It returns the transaction hash.
func (p *Provider) SignAndSendTransaction(ctx context.Context, tx *solana.Transaction) (string, error) {
	out, err := p.Request(ctx, RequestArguments{Method: MethodSignAndSendTransaction, Params: tx})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// ConvertToProgramWalletTransaction rewrites tx so that it executes through
// the user's program wallet. The result carries no signatures.
func (p *Provider) ConvertToProgramWalletTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	out, err := p.Request(ctx, RequestArguments{Method: MethodConvertToProgramWalletTransaction, Params: tx})
	if err != nil {
		return nil, err
	}
	return out.(*solana.Transaction), nil
}

// Call performs a read-only JSON-RPC request.
func (p *Provider) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	out, err := p.Request(ctx, RequestArguments{Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (p *Provider) detach(ctx context.Context, o surface.Overlay) {
	if err := p.surface.Detach(o); err != nil {
		p.logger.WarnContext(ctx, "failed to detach overlay", "url", o.URL(), "error", err)
	}
}
