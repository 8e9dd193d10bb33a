package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/custodian/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Request methods handled by the provider itself. Any other method is
// forwarded to the network's JSON-RPC endpoint.
const (
	MethodConnect                           = "connect"
	MethodGetAccounts                       = "getAccounts"
	MethodConvertToProgramWalletTransaction = "convertToProgramWalletTransaction"
	MethodSignAndSendTransaction            = "signAndSendTransaction"
	MethodSignTransaction                   = "signTransaction"
	MethodSignAllTransactions               = "signAllTransactions"
)

// RequestArguments is a single provider request.
type RequestArguments struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Request dispatches a provider request. Results by method:
//
//	connect, getAccounts                []string
//	convertToProgramWalletTransaction   *solana.Transaction
//	signAndSendTransaction              string (transaction hash)
//	anything else                       json.RawMessage from the RPC endpoint
//
// Errors are logged and counted here, then returned as they were raised.
func (p *Provider) Request(ctx context.Context, args RequestArguments) (result any, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			p.logger.ErrorContext(ctx, "request failed", "method", args.Method, "error", err)
		}
		if p.metrics != nil {
			p.metrics.RecordRequest(metricMethod(args.Method), status, time.Since(start).Seconds())
		}
	}()

	return p.dispatch(ctx, args)
}

func (p *Provider) dispatch(ctx context.Context, args RequestArguments) (any, error) {
	switch args.Method {
	case MethodSignTransaction, MethodSignAllTransactions:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, args.Method)

	case MethodConnect:
		if err := p.ensureConnected(ctx); err != nil {
			return nil, err
		}
		code, _ := p.session.snapshot()
		accounts, err := p.backend.Accounts(ctx, code)
		if err != nil {
			return nil, err
		}
		p.session.setAccounts(accounts)
		return accounts, nil

	case MethodGetAccounts:
		if err := p.ensureConnected(ctx); err != nil {
			return nil, err
		}
		code, accounts := p.session.snapshot()
		if len(accounts) > 0 {
			return accounts, nil
		}
		accounts, err := p.backend.Accounts(ctx, code)
		if err != nil {
			return nil, err
		}
		p.session.setAccounts(accounts)
		return accounts, nil

	case MethodConvertToProgramWalletTransaction:
		tx, err := transactionParam(args.Params)
		if err != nil {
			return nil, err
		}
		if err := p.ensureConnected(ctx); err != nil {
			return nil, err
		}
		return p.convert(ctx, tx)

	case MethodSignAndSendTransaction:
		tx, err := transactionParam(args.Params)
		if err != nil {
			return nil, err
		}
		if err := p.ensureConnected(ctx); err != nil {
			return nil, err
		}
		message, err := tx.MessageHex()
		if err != nil {
			return nil, err
		}
		return p.authorize(ctx, message, solana.Encode(tx))

	case "":
		return nil, fmt.Errorf("%w: method is required", ErrInvalidParams)

	default:
		return p.bridge.Call(ctx, args.Method, args.Params)
	}
}

func (p *Provider) convert(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	message, err := tx.MessageHex()
	if err != nil {
		return nil, err
	}
	code, _ := p.session.snapshot()
	converted, err := p.backend.ConvertToWalletTx(ctx, code, p.sessionID, message)
	if err != nil {
		return nil, err
	}
	msg, err := solana.DecodeMessageHex(converted)
	if err != nil {
		return nil, err
	}
	return solana.Decode(msg, nil)
}

// transactionParam accepts a structured transaction, a solana-go
// transaction, or a one-element list holding either.
func transactionParam(params any) (*solana.Transaction, error) {
	switch v := params.(type) {
	case *solana.Transaction:
		if v != nil {
			return v, nil
		}
	case *solanago.Transaction:
		if v != nil {
			return solana.FromSolanaTransaction(v)
		}
	case []any:
		if len(v) == 1 {
			return transactionParam(v[0])
		}
	}
	return nil, fmt.Errorf("%w: expected a transaction, got %T", ErrInvalidParams, params)
}

// metricMethod keeps the request metric's method label bounded.
func metricMethod(method string) string {
	switch method {
	case MethodConnect, MethodGetAccounts, MethodConvertToProgramWalletTransaction,
		MethodSignAndSendTransaction, MethodSignTransaction, MethodSignAllTransactions:
		return method
	}
	return "rpc"
}
