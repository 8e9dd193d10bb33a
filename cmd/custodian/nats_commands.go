package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/custodian/service/config"
	"github.com/brojonat/custodian/service/nats"
	"github.com/brojonat/custodian/service/surface"
	"github.com/urfave/cli/v2"
)

// emitCommand stands in for the wallet service's pages: it publishes a
// challenge reply straight to NATS, bypassing the relay.
func emitCommand() *cli.Command {
	return &cli.Command{
		Name:      "emit",
		Usage:     "Publish a cross-context message (for testing sign-in without the wallet UI)",
		ArgsUsage: "EVENT TYPE (EVENT is message-<challenge> from the sign-in URL)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "code",
				Usage: "Session code carried by CHALLENGE::RESPONSE",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Account address carried by CHALLENGE::RESPONSE",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Origin to publish as (defaults to the wallet service origin)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("event and type are required")
			}

			origin := c.String("from")
			if origin == "" {
				network, err := config.ParseNetwork(c.String("network"))
				if err != nil {
					return err
				}
				origin = config.ResolveServer(network, c.String("server"))
			}
			if origin == "" {
				return fmt.Errorf("no origin: pass --from or --server")
			}

			msg := surface.Message{
				Origin: surface.Origin(origin),
				Type:   c.Args().Get(1),
				Code:   c.String("code"),
				Addr:   c.String("addr"),
			}

			logger := setupLogger(c.String("log-level"))
			nc, err := nats.Connect(c.String("nats-url"), "custodian-emit")
			if err != nil {
				return err
			}
			publisher := nats.NewPublisher(nc, nats.DefaultPrefix, nil, logger)
			defer publisher.Close()

			ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()

			event := c.Args().Get(0)
			if err := publisher.Publish(ctx, event, msg); err != nil {
				return fmt.Errorf("failed to publish: %w", err)
			}
			if err := nc.FlushWithContext(ctx); err != nil {
				return fmt.Errorf("failed to flush: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]interface{}{
					"subject": nats.Subject(nats.DefaultPrefix, event),
					"message": msg,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Published %s to %s\n", msg.Type, nats.Subject(nats.DefaultPrefix, event))
			return nil
		},
	}
}
