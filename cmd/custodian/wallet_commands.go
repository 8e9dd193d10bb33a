package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/brojonat/custodian/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Sign in to the wallet service and list the session's accounts",
		Action: func(c *cli.Context) error {
			p, cleanup, err := newProvider(c, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			accounts, err := p.Connect(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			return printAccounts(c, accounts)
		},
	}
}

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "List the session's accounts, signing in first if needed",
		Action: func(c *cli.Context) error {
			p, cleanup, err := newProvider(c, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			accounts, err := p.Accounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to get accounts: %w", err)
			}
			return printAccounts(c, accounts)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Submit a transaction message for approval, signing and sending",
		ArgsUsage: "HEX_MESSAGE",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "signature",
				Usage: "Known signature as ADDRESS=BASE58_SIGNATURE (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("hex message is required")
			}

			known, err := parseSignatures(c.StringSlice("signature"))
			if err != nil {
				return err
			}
			tx, err := decodeWithSignatures(c.Args().Get(0), known)
			if err != nil {
				return err
			}

			p, cleanup, err := newProvider(c, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			if !c.Bool("json") {
				printSummary(c.App.ErrWriter, solana.Describe(tx))
			}

			hash, err := p.SignAndSendTransaction(ctx, tx)
			if err != nil {
				return fmt.Errorf("failed to send transaction: %w", err)
			}
			return printHash(c, hash)
		},
	}
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "Transfer SOL from a session account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Recipient address",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "lamports",
				Usage:    "Amount in lamports",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Sender address (defaults to the session's first account)",
			},
			&cli.StringFlag{
				Name:  "memo",
				Usage: "Optional memo attached to the transfer",
			},
		},
		Action: func(c *cli.Context) error {
			to, err := solanago.PublicKeyFromBase58(c.String("to"))
			if err != nil {
				return fmt.Errorf("invalid recipient address: %w", err)
			}

			p, cleanup, err := newProvider(c, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			sender := c.String("from")
			if sender == "" {
				accounts, err := p.Accounts(ctx)
				if err != nil {
					return fmt.Errorf("failed to get accounts: %w", err)
				}
				if len(accounts) == 0 {
					return fmt.Errorf("session has no accounts")
				}
				sender = accounts[0]
			}
			from, err := solanago.PublicKeyFromBase58(sender)
			if err != nil {
				return fmt.Errorf("invalid sender address: %w", err)
			}

			tx, err := solana.BuildTransfer(ctx, solana.NewRPCClient(p.RPCURL()), solana.TransferParams{
				From:     from,
				To:       to,
				Lamports: c.Uint64("lamports"),
				Memo:     c.String("memo"),
			})
			if err != nil {
				return err
			}

			if !c.Bool("json") {
				printSummary(c.App.ErrWriter, solana.Describe(tx))
			}

			hash, err := p.SignAndSendTransaction(ctx, tx)
			if err != nil {
				return fmt.Errorf("failed to send transfer: %w", err)
			}
			return printHash(c, hash)
		},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Rewrite a transaction message to execute through the program wallet",
		ArgsUsage: "HEX_MESSAGE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("hex message is required")
			}
			tx, err := decodeWithSignatures(c.Args().Get(0), nil)
			if err != nil {
				return err
			}

			p, cleanup, err := newProvider(c, true)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			converted, err := p.ConvertToProgramWalletTransaction(ctx, tx)
			if err != nil {
				return fmt.Errorf("failed to convert transaction: %w", err)
			}

			message, err := converted.MessageHex()
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(c.App.Writer, map[string]interface{}{
					"message": message,
					"summary": solana.Describe(converted),
				})
			}
			fmt.Fprintln(c.App.Writer, message)
			return nil
		},
	}
}

// parseSignatures reads ADDRESS=BASE58_SIGNATURE pairs.
func parseSignatures(pairs []string) (map[solanago.PublicKey]string, error) {
	out := make(map[solanago.PublicKey]string, len(pairs))
	for _, pair := range pairs {
		addr, sig, ok := strings.Cut(pair, "=")
		if !ok || sig == "" {
			return nil, fmt.Errorf("invalid signature %q: expected ADDRESS=SIGNATURE", pair)
		}
		key, err := solanago.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid signer address %q: %w", addr, err)
		}
		if _, err := solanago.SignatureFromBase58(sig); err != nil {
			return nil, fmt.Errorf("invalid signature for %s: %w", addr, err)
		}
		out[key] = sig
	}
	return out, nil
}

// decodeWithSignatures decodes a hex message and lines up the known
// signatures with its signer slots. Slots without one are left unsigned.
func decodeWithSignatures(hexMessage string, known map[solanago.PublicKey]string) (*solana.Transaction, error) {
	msg, err := solana.DecodeMessageHex(hexMessage)
	if err != nil {
		return nil, err
	}

	numSigners := int(msg.Header.NumRequiredSignatures)
	if numSigners > len(msg.AccountKeys) {
		numSigners = len(msg.AccountKeys)
	}
	used := make(map[solanago.PublicKey]bool, len(known))
	sigs := make([]string, numSigners)
	for i := range sigs {
		sigs[i] = solanago.Signature{}.String()
		if sig, ok := known[msg.AccountKeys[i]]; ok {
			sigs[i] = sig
			used[msg.AccountKeys[i]] = true
		}
	}

	var unknown []string
	for key := range known {
		if !used[key] {
			unknown = append(unknown, key.String())
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("not signers of this message: %s", strings.Join(unknown, ", "))
	}

	return solana.Decode(msg, sigs)
}

func printAccounts(c *cli.Context, accounts []string) error {
	if c.Bool("json") {
		return printJSON(c.App.Writer, map[string]interface{}{"accounts": accounts})
	}
	if len(accounts) == 0 {
		fmt.Fprintln(c.App.Writer, "No accounts found")
		return nil
	}
	for _, a := range accounts {
		fmt.Fprintln(c.App.Writer, a)
	}
	return nil
}

func printHash(c *cli.Context, hash string) error {
	if c.Bool("json") {
		return printJSON(c.App.Writer, map[string]string{"transaction_hash": hash})
	}
	fmt.Fprintf(c.App.Writer, "✓ Transaction sent\n  Hash: %s\n", hash)
	return nil
}

func printSummary(w io.Writer, s *solana.Summary) {
	fmt.Fprintf(w, "Transaction\n")
	if s.FeePayer != "" {
		fmt.Fprintf(w, "  Fee payer:  %s\n", s.FeePayer)
	}
	fmt.Fprintf(w, "  Blockhash:  %s\n", s.RecentBlockhash)
	fmt.Fprintf(w, "  Signers:    %d (%d signed)\n", len(s.Signers), len(s.Signed))
	for i, ins := range s.Instructions {
		fmt.Fprintf(w, "  [%d] %s (%d accounts)\n", i, ins.Program, ins.Accounts)
		if ins.Amount != 0 {
			fmt.Fprintf(w, "      Amount: %d\n", ins.Amount)
		}
		if ins.From != "" {
			fmt.Fprintf(w, "      From:   %s\n", ins.From)
		}
		if ins.To != "" {
			fmt.Fprintf(w, "      To:     %s\n", ins.To)
		}
		if ins.Memo != "" {
			fmt.Fprintf(w, "      Memo:   %s\n", ins.Memo)
		}
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
