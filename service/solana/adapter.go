package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is the subset of typed Solana RPC operations the CLI needs to
// assemble transactions. It allows tests to stub the network.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL.
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := r.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

// TransferParams describes a native SOL transfer to be approved remotely.
type TransferParams struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
	Memo     string
}

// BuildTransfer assembles an unsigned transfer transaction paid by the
// sender, using the latest finalized blockhash.
func BuildTransfer(ctx context.Context, client RPCClient, params TransferParams) (*Transaction, error) {
	if params.Lamports == 0 {
		return nil, fmt.Errorf("lamports must be greater than zero")
	}

	blockhash, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(params.Lamports, params.From, params.To).Build(),
	}
	if params.Memo != "" {
		instructions = append(instructions, solana.NewInstruction(
			MemoProgramIDSPL,
			solana.AccountMetaSlice{solana.NewAccountMeta(params.From, false, true)},
			[]byte(params.Memo),
		))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(params.From))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	return FromSolanaTransaction(tx)
}
