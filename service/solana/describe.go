package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.TokenProgramID

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// InstructionSummary is a human-oriented view of one instruction, used when
// showing a transaction to the user before it is sent for approval.
type InstructionSummary struct {
	Program   string `json:"program"`
	ProgramID string `json:"program_id"`
	Accounts  int    `json:"accounts"`
	Amount    uint64 `json:"amount,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Memo      string `json:"memo,omitempty"`
}

// Summary describes a structured transaction.
type Summary struct {
	FeePayer        string               `json:"fee_payer,omitempty"`
	RecentBlockhash string               `json:"recent_blockhash"`
	Signers         []string             `json:"signers"`
	Signed          []string             `json:"signed"`
	Instructions    []InstructionSummary `json:"instructions"`
}

// Describe summarizes a transaction: who pays, who signs, and what each
// instruction does for the programs we know about.
func Describe(tx *Transaction) *Summary {
	s := &Summary{
		RecentBlockhash: tx.RecentBlockhash.String(),
		Signers:         []string{},
		Signed:          []string{},
		Instructions:    make([]InstructionSummary, 0, len(tx.Instructions)),
	}
	if tx.FeePayer != nil {
		s.FeePayer = tx.FeePayer.String()
	}
	for i := 0; i < int(tx.header.NumRequiredSignatures) && i < len(tx.accountKeys); i++ {
		s.Signers = append(s.Signers, tx.accountKeys[i].String())
	}
	for _, pair := range tx.Signatures {
		if pair.Signature != nil {
			s.Signed = append(s.Signed, pair.PublicKey.String())
		}
	}

	for _, ins := range tx.Instructions {
		summary := InstructionSummary{
			Program:   programName(ins.ProgramID),
			ProgramID: ins.ProgramID.String(),
			Accounts:  len(ins.Keys),
		}

		switch {
		case ins.ProgramID.Equals(SystemProgramID):
			if amount, err := parseSystemTransfer(ins.Data); err == nil && len(ins.Keys) >= 2 {
				summary.Amount = amount
				summary.From = ins.Keys[0].PubKey.String()
				summary.To = ins.Keys[1].PubKey.String()
			}
		case ins.ProgramID.Equals(TokenProgramID) || ins.ProgramID.Equals(Token2022ProgramID):
			if amount, err := parseTokenAmount(ins.Data); err == nil {
				summary.Amount = amount
			}
		case ins.ProgramID.Equals(MemoProgramIDSPL) || ins.ProgramID.Equals(MemoProgramIDLegacy):
			summary.Memo = parseMemo(ins.Data)
		}

		s.Instructions = append(s.Instructions, summary)
	}

	return s
}

func programName(id solana.PublicKey) string {
	switch {
	case id.Equals(SystemProgramID):
		return "system"
	case id.Equals(TokenProgramID):
		return "spl-token"
	case id.Equals(Token2022ProgramID):
		return "spl-token-2022"
	case id.Equals(MemoProgramIDSPL), id.Equals(MemoProgramIDLegacy):
		return "memo"
	default:
		return "unknown"
	}
}

// parseSystemTransfer extracts the lamports from a System Program Transfer instruction.
func parseSystemTransfer(data []byte) (uint64, error) {
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(data) < 12 {
		return 0, fmt.Errorf("instruction data too short: %d bytes", len(data))
	}

	instructionType := binary.LittleEndian.Uint32(data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return 0, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	return binary.LittleEndian.Uint64(data[4:12]), nil
}

// parseTokenAmount extracts the amount from Transfer and TransferChecked.
func parseTokenAmount(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty instruction data")
	}

	switch data[0] {
	case TokenProgramTransferInstruction, TokenProgramTransferCheckedInstruction:
		if len(data) < 9 {
			return 0, fmt.Errorf("transfer instruction data too short")
		}
		return binary.LittleEndian.Uint64(data[1:9]), nil
	default:
		return 0, fmt.Errorf("unknown token instruction type: %d", data[0])
	}
}

// parseMemo extracts the memo text from a Memo Program instruction.
// Some memos are base64 encoded, others are plain text.
func parseMemo(data []byte) string {
	memo := string(data)
	if decoded, err := base64.StdEncoding.DecodeString(memo); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}
	return memo
}
