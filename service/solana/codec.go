package solana

import (
	"encoding/hex"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	// defaultSignature is the base58 encoding of an all-zero signature, which
	// wallets use as a placeholder for slots that have not been signed.
	defaultSignature = solana.Signature{}.String()

	// defaultPublicKey is the base58 encoding of the all-zero public key. Some
	// wallets send it instead of the zero signature for unsigned slots.
	defaultPublicKey = solana.PublicKey{}.String()
)

// ErrMalformedMessage is returned when a wire message cannot be decoded into
// a structured transaction.
var ErrMalformedMessage = errors.New("malformed transaction message")

// Decode builds a structured transaction from a wire message and the
// base58 signatures that accompany it. signatures is index-aligned with the
// message's account keys and may be shorter than it (or empty).
func Decode(msg *solana.Message, signatures []string) (*Transaction, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	if len(msg.AddressTableLookups) > 0 {
		return nil, fmt.Errorf("%w: address table lookups are not supported", ErrMalformedMessage)
	}

	keys := msg.AccountKeys
	numSigners := int(msg.Header.NumRequiredSignatures)
	if numSigners > len(keys) {
		return nil, fmt.Errorf("%w: %d required signatures but only %d account keys", ErrMalformedMessage, numSigners, len(keys))
	}
	if len(signatures) > len(keys) {
		return nil, fmt.Errorf("%w: %d signatures but only %d account keys", ErrMalformedMessage, len(signatures), len(keys))
	}

	tx := &Transaction{
		RecentBlockhash: msg.RecentBlockhash,
		Signatures:      make([]SignaturePair, 0, len(signatures)),
		Instructions:    make([]Instruction, 0, len(msg.Instructions)),
		header:          msg.Header,
		accountKeys:     append(solana.PublicKeySlice(nil), keys...),
		version:         msg.GetVersion(),
	}

	if numSigners > 0 {
		payer := keys[0]
		tx.FeePayer = &payer
	}

	for i, raw := range signatures {
		pair := SignaturePair{PublicKey: keys[i]}
		if raw != defaultSignature && raw != defaultPublicKey {
			sig, err := solana.SignatureFromBase58(raw)
			if err != nil {
				return nil, fmt.Errorf("signature %d: %w", i, err)
			}
			pair.Signature = &sig
		}
		tx.Signatures = append(tx.Signatures, pair)
	}

	for i, compiled := range msg.Instructions {
		if int(compiled.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("%w: instruction %d: program index %d out of range", ErrMalformedMessage, i, compiled.ProgramIDIndex)
		}

		metas := make([]AccountMeta, 0, len(compiled.Accounts))
		for _, idx := range compiled.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("%w: instruction %d: account index %d out of range", ErrMalformedMessage, i, idx)
			}
			metas = append(metas, AccountMeta{
				PubKey:     keys[idx],
				IsSigner:   int(idx) < numSigners,
				IsWritable: isWritable(msg.Header, len(keys), int(idx)),
			})
		}

		tx.Instructions = append(tx.Instructions, Instruction{
			ProgramID: keys[compiled.ProgramIDIndex],
			Keys:      metas,
			Data:      append([]byte(nil), compiled.Data...),
		})
	}

	return tx, nil
}

// isWritable reads the writability bitmap encoded by the message header.
// Signers come first, with the read-only signers at the end of that group;
// read-only non-signers sit at the end of the key list.
func isWritable(h solana.MessageHeader, numKeys, index int) bool {
	numSigners := int(h.NumRequiredSignatures)
	if index < numSigners {
		return index < numSigners-int(h.NumReadonlySignedAccounts)
	}
	return index < numKeys-int(h.NumReadonlyUnsignedAccounts)
}

// Encode collects the known signatures of a transaction as a mapping of
// signer address to hex-encoded signature. Unsigned slots are omitted.
func Encode(tx *Transaction) map[string]string {
	out := make(map[string]string)
	if tx == nil {
		return out
	}
	for _, pair := range tx.Signatures {
		if pair.Signature == nil {
			continue
		}
		out[pair.PublicKey.String()] = hex.EncodeToString(pair.Signature[:])
	}
	return out
}

// FromSolanaTransaction converts a solana-go transaction into the structured
// form, keeping whatever signatures it already carries.
func FromSolanaTransaction(tx *solana.Transaction) (*Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrMalformedMessage)
	}
	sigs := make([]string, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		sigs[i] = sig.String()
	}
	return Decode(&tx.Message, sigs)
}

// Message compiles the transaction back into its wire message, keeping the
// account key order and instruction order it was decoded with.
func (t *Transaction) Message() (*solana.Message, error) {
	index := make(map[solana.PublicKey]uint16, len(t.accountKeys))
	for i, key := range t.accountKeys {
		if _, seen := index[key]; !seen {
			index[key] = uint16(i)
		}
	}

	msg := &solana.Message{
		AccountKeys:     append(solana.PublicKeySlice(nil), t.accountKeys...),
		Header:          t.header,
		RecentBlockhash: t.RecentBlockhash,
		Instructions:    make([]solana.CompiledInstruction, 0, len(t.Instructions)),
	}
	msg.SetVersion(t.version)

	for i, ins := range t.Instructions {
		programIdx, ok := index[ins.ProgramID]
		if !ok {
			return nil, fmt.Errorf("%w: instruction %d: program %s is not an account key", ErrMalformedMessage, i, ins.ProgramID)
		}
		accounts := make([]uint16, 0, len(ins.Keys))
		for _, meta := range ins.Keys {
			idx, ok := index[meta.PubKey]
			if !ok {
				return nil, fmt.Errorf("%w: instruction %d: account %s is not an account key", ErrMalformedMessage, i, meta.PubKey)
			}
			accounts = append(accounts, idx)
		}
		msg.Instructions = append(msg.Instructions, solana.CompiledInstruction{
			ProgramIDIndex: programIdx,
			Accounts:       accounts,
			Data:           solana.Base58(append([]byte(nil), ins.Data...)),
		})
	}

	return msg, nil
}

// MessageHex compiles the transaction and returns its hex wire encoding.
func (t *Transaction) MessageHex() (string, error) {
	msg, err := t.Message()
	if err != nil {
		return "", err
	}
	return EncodeMessageHex(msg)
}

// EncodeMessageHex serializes a wire message as a hex string.
func EncodeMessageHex(msg *solana.Message) (string, error) {
	data, err := msg.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize message: %w", err)
	}
	return hex.EncodeToString(data), nil
}

// DecodeMessageHex parses a hex wire message. A leading "0x" is tolerated.
func DecodeMessageHex(s string) (*solana.Message, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	var msg solana.Message
	if err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}
