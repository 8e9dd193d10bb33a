package solana

import (
	"github.com/gagliardetto/solana-go"
)

// Transaction is the structured form of a Solana transaction.
// It is built fresh from a wire message by Decode and is what callers inspect
// or attach signatures to before handing it back to the remote signer.
type Transaction struct {
	FeePayer        *solana.PublicKey `json:"feePayer,omitempty"`
	RecentBlockhash solana.Hash       `json:"recentBlockhash"`
	Signatures      []SignaturePair   `json:"signatures"`
	Instructions    []Instruction     `json:"instructions"`

	// header and accountKeys are retained from the decoded message so the
	// transaction compiles back to the same wire layout.
	header      solana.MessageHeader
	accountKeys solana.PublicKeySlice
	version     solana.MessageVersion
}

// SignaturePair binds a signer's public key to its signature.
// Signature is nil for slots that have not been signed yet.
type SignaturePair struct {
	PublicKey solana.PublicKey  `json:"publicKey"`
	Signature *solana.Signature `json:"signature"`
}

// Instruction is a decompiled instruction with full account metadata.
type Instruction struct {
	ProgramID solana.PublicKey `json:"programId"`
	Keys      []AccountMeta    `json:"keys"`
	Data      []byte           `json:"data"`
}

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PubKey     solana.PublicKey `json:"pubkey"`
	IsSigner   bool             `json:"isSigner"`
	IsWritable bool             `json:"isWritable"`
}

// AccountKeys returns the ordered account keys of the originating message.
func (t *Transaction) AccountKeys() []solana.PublicKey {
	out := make([]solana.PublicKey, len(t.accountKeys))
	copy(out, t.accountKeys)
	return out
}

// Header returns the message header the transaction was decoded from.
func (t *Transaction) Header() solana.MessageHeader {
	return t.header
}
