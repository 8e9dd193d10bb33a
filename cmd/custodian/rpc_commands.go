package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/brojonat/custodian/service/solana"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func rpcCommand() *cli.Command {
	return &cli.Command{
		Name:      "rpc",
		Usage:     "Call a read-only JSON-RPC method on the network",
		ArgsUsage: "METHOD [PARAMS_JSON]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the result",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("method is required")
			}
			method := c.Args().Get(0)

			var params interface{}
			if raw := c.Args().Get(1); raw != "" {
				if err := json.Unmarshal([]byte(raw), &params); err != nil {
					return fmt.Errorf("invalid params JSON: %w", err)
				}
			}

			code, err := compileJQ(c.String("jq"))
			if err != nil {
				return err
			}

			p, cleanup, err := newProvider(c, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := commandContext(c)
			defer cancel()

			result, err := p.Call(ctx, method, params)
			if err != nil {
				return fmt.Errorf("rpc call failed: %w", err)
			}

			var value interface{}
			if err := json.Unmarshal(result, &value); err != nil {
				return fmt.Errorf("failed to parse result: %w", err)
			}
			return printFiltered(c.App.Writer, code, value)
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a hex transaction message",
		ArgsUsage: "HEX_MESSAGE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the decoded transaction",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("hex message is required")
			}

			code, err := compileJQ(c.String("jq"))
			if err != nil {
				return err
			}

			tx, err := decodeWithSignatures(c.Args().Get(0), nil)
			if err != nil {
				return err
			}
			summary := solana.Describe(tx)

			if code == nil && !c.Bool("json") {
				printSummary(c.App.Writer, summary)
				return nil
			}

			value, err := toJQValue(map[string]interface{}{
				"summary":     summary,
				"transaction": tx,
			})
			if err != nil {
				return err
			}
			return printFiltered(c.App.Writer, code, value)
		},
	}
}

// compileJQ parses and compiles a jq filter. An empty filter yields nil.
func compileJQ(filter string) (*gojq.Code, error) {
	if filter == "" {
		return nil, nil
	}
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// runJQ returns every value the filter emits for input.
func runJQ(code *gojq.Code, input interface{}) ([]interface{}, error) {
	var out []interface{}
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		out = append(out, v)
	}
}

// toJQValue converts v to the plain maps and slices gojq operates on.
func toJQValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return out, nil
}

// printFiltered prints value, or each filter output, as indented JSON.
func printFiltered(w io.Writer, code *gojq.Code, value interface{}) error {
	if code == nil {
		return printJSON(w, value)
	}
	results, err := runJQ(code, value)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := printJSON(w, r); err != nil {
			return err
		}
	}
	return nil
}
