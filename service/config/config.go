package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// Network identifies a Solana cluster the provider can talk to.
type Network string

const (
	MainnetBeta Network = "mainnet-beta"
	Testnet     Network = "testnet"
	Devnet      Network = "devnet"
	Localnet    Network = "localnet"
)

// Environment overrides consulted by the provider.
const (
	EnvServerURL = "CUSTODIAN_SERVER_URL"
	EnvAppID     = "CUSTODIAN_APP_ID"
)

// DefaultPollInterval is how often a pending authorization is polled.
const DefaultPollInterval = 1000 * time.Millisecond

// ErrUnsupportedNetwork is returned when a provider is constructed for a
// network outside the supported set.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// rpcURLs maps each supported network to its public JSON-RPC endpoint.
var rpcURLs = map[Network]string{
	MainnetBeta: rpc.MainNetBeta_RPC,
	Testnet:     rpc.TestNet_RPC,
	Devnet:      rpc.DevNet_RPC,
	Localnet:    rpc.LocalNet_RPC,
}

// defaultServers maps networks to the hosted wallet service origin.
// Localnet has no hosted service; it relies on an explicit server or the
// CUSTODIAN_SERVER_URL override.
var defaultServers = map[Network]string{
	MainnetBeta: "https://custodian.brojonat.com",
	Testnet:     "https://testnet.custodian.brojonat.com",
	Devnet:      "https://devnet.custodian.brojonat.com",
}

// Networks returns the supported networks in a stable order.
func Networks() []Network {
	return []Network{MainnetBeta, Testnet, Devnet, Localnet}
}

// ParseNetwork validates a network identifier.
func ParseNetwork(s string) (Network, error) {
	n := Network(strings.TrimSpace(s))
	if _, ok := rpcURLs[n]; !ok {
		if n == "" {
			return "", fmt.Errorf("%w: network is required", ErrUnsupportedNetwork)
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, s)
	}
	return n, nil
}

// RPCURL returns the public JSON-RPC endpoint of the network.
func (n Network) RPCURL() string {
	return rpcURLs[n]
}

// DefaultServer returns the hosted wallet service origin for the network, or
// an empty string when there is none.
func (n Network) DefaultServer() string {
	return defaultServers[n]
}

// ResolveServer picks the wallet service origin. Precedence: explicit value,
// then the network default, then CUSTODIAN_SERVER_URL, then empty.
func ResolveServer(n Network, explicit string) string {
	if explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	if s := n.DefaultServer(); s != "" {
		return s
	}
	return strings.TrimRight(os.Getenv(EnvServerURL), "/")
}

// ResolveAppID picks the application identifier. CUSTODIAN_APP_ID wins over
// the value passed by the caller.
func ResolveAppID(passed string) string {
	if v := os.Getenv(EnvAppID); v != "" {
		return v
	}
	return passed
}

// Config holds the settings for the CLI and the message relay, loaded from
// environment variables.
type Config struct {
	LogLevel string

	// Provider configuration
	Network      Network
	ServerURL    string
	AppID        string
	Origin       string
	PollInterval time.Duration

	// NATS configuration
	NATSURL string

	// Relay configuration
	RelayAddr   string
	MetricsAddr string
}

// Load reads configuration from environment variables and validates it.
// All validation errors are reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	network, err := ParseNetwork(getEnvOrDefault("CUSTODIAN_NETWORK", string(MainnetBeta)))
	if err != nil {
		errs = append(errs, fmt.Errorf("CUSTODIAN_NETWORK: %w", err))
	} else {
		cfg.Network = network
		cfg.ServerURL = ResolveServer(network, os.Getenv("CUSTODIAN_SERVER"))
	}
	cfg.AppID = ResolveAppID("")
	cfg.Origin = getEnvOrDefault("CUSTODIAN_ORIGIN", "http://localhost")

	pollInterval, err := parseDuration("POLL_INTERVAL", DefaultPollInterval.String())
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PollInterval = pollInterval
	}

	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	cfg.RelayAddr = getEnvOrDefault("RELAY_ADDR", ":8080")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseNetwork(string(c.Network)); err != nil {
		errs = append(errs, fmt.Errorf("Network: %w", err))
	}

	if c.ServerURL == "" {
		errs = append(errs, fmt.Errorf("ServerURL is required for network %q", c.Network))
	}

	if c.Origin == "" {
		errs = append(errs, fmt.Errorf("Origin is required"))
	}

	if c.PollInterval < 10*time.Millisecond {
		errs = append(errs, fmt.Errorf("PollInterval must be at least 10ms"))
	}

	if c.NATSURL == "" {
		errs = append(errs, fmt.Errorf("NATSURL is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
