package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brojonat/custodian/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "custodian",
		Usage: "Custodial Solana wallet provider CLI",
		Description: `A command-line host for the custodial wallet provider.

Sign-in and approval pages are printed as URLs to open in a browser; their
replies arrive through the message relay over NATS. Read-only RPC calls and
transaction decoding need no session.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Session commands
			connectCommand(),
			accountsCommand(),
			// Transaction commands
			sendCommand(),
			transferCommand(),
			convertCommand(),
			// Read-only commands
			rpcCommand(),
			decodeCommand(),
			// Relay commands
			emitCommand(),
			healthCommand(),
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Solana network (mainnet-beta, testnet, devnet, localnet)",
				EnvVars: []string{"CUSTODIAN_NETWORK"},
				Value:   string(config.MainnetBeta),
			},
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Wallet service origin (defaults to the network's hosted service)",
				EnvVars: []string{"CUSTODIAN_SERVER"},
			},
			&cli.StringFlag{
				Name:  "app-id",
				Usage: "Application identifier (CUSTODIAN_APP_ID takes precedence)",
			},
			&cli.StringFlag{
				Name:    "origin",
				Usage:   "Origin shown to the user on the sign-in page",
				EnvVars: []string{"CUSTODIAN_ORIGIN"},
				Value:   "http://localhost",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Override the network's JSON-RPC endpoint",
				EnvVars: []string{"CUSTODIAN_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL the relay publishes to",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "relay-url",
				Usage:   "Message relay URL for health checks",
				EnvVars: []string{"RELAY_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often a pending approval is polled",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   config.DefaultPollInterval,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "How long to wait for sign-in or approval",
				Value:   5 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while the command runs",
				EnvVars: []string{"METRICS_ADDR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
