// Package txbuilder builds and signs the minimal Solana transaction
// shape scramjet's fire/spam commands send: a compute-budget limit,
// a compute-budget price (the priority fee), and a single-lamport
// system-program transfer (see spec §3). It is not a general
// transaction builder — callers needing other instruction types are
// expected to bring their own pre-signed wire bytes.
package txbuilder

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/dotslashapaar/scramjet/pkg/identity"
)

const pubkeyLen = 32

// systemProgramID is the all-zero system program address.
var systemProgramID = [pubkeyLen]byte{}

// computeBudgetProgramID is the well-known compute budget program address.
var computeBudgetProgramID = mustDecodePubkey("ComputeBudget111111111111111111111111111111")

const (
	systemInstructionTransfer = uint32(2)

	computeBudgetInstructionSetComputeUnitLimit = byte(2)
	computeBudgetInstructionSetComputeUnitPrice = byte(3)
)

// Pubkey is an arbitrary 32-byte Solana account address, distinct
// from types.ValidatorKey because a transfer recipient need not be a
// validator's vote/identity key.
type Pubkey [pubkeyLen]byte

// ParsePubkey decodes a base58-encoded address.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 pubkey %q: %w", s, err)
	}
	if len(decoded) != pubkeyLen {
		return pk, fmt.Errorf("invalid pubkey length for %q: got %d bytes, want %d", s, len(decoded), pubkeyLen)
	}
	copy(pk[:], decoded)
	return pk, nil
}

func mustDecodePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (pk Pubkey) String() string { return base58.Encode(pk[:]) }

// BuildParams describes a single fire/spam transaction.
type BuildParams struct {
	Payer                    *identity.Key
	Recipient                Pubkey
	ComputeUnitLimit         uint32
	PriorityFeeMicroLamports uint64
	LamportsToSend           uint64
	RecentBlockhash          [32]byte
}

// compiledInstruction is a message instruction with accounts and
// program id referenced by index into the message's account list.
type compiledInstruction struct {
	programIDIndex byte
	accounts       []byte
	data           []byte
}

// Build constructs, signs, and serializes the transaction, returning
// its wire bytes (ready to send as a QUIC substream payload) and the
// base58 signature for display/logging.
func Build(p BuildParams) (wireBytes []byte, signature string, err error) {
	if p.LamportsToSend == 0 {
		p.LamportsToSend = 1
	}

	payerKey := p.Payer.Public

	accountKeys := [][pubkeyLen]byte{
		toArray(payerKey),
		p.Recipient,
		systemProgramID,
		computeBudgetProgramID,
	}
	const (
		payerIdx     = 0
		recipientIdx = 1
		systemIdx    = 2
		computeIdx   = 3
	)

	limitData := make([]byte, 5)
	limitData[0] = computeBudgetInstructionSetComputeUnitLimit
	binary.LittleEndian.PutUint32(limitData[1:], p.ComputeUnitLimit)

	priceData := make([]byte, 9)
	priceData[0] = computeBudgetInstructionSetComputeUnitPrice
	binary.LittleEndian.PutUint64(priceData[1:], p.PriorityFeeMicroLamports)

	transferData := make([]byte, 12)
	binary.LittleEndian.PutUint32(transferData[0:4], systemInstructionTransfer)
	binary.LittleEndian.PutUint64(transferData[4:], p.LamportsToSend)

	instructions := []compiledInstruction{
		{programIDIndex: computeIdx, accounts: nil, data: limitData},
		{programIDIndex: computeIdx, accounts: nil, data: priceData},
		{programIDIndex: systemIdx, accounts: []byte{payerIdx, recipientIdx}, data: transferData},
	}

	message := encodeMessage(accountKeys, p.RecentBlockhash, instructions)

	sig := ed25519.Sign(p.Payer.Private, message)

	var buf []byte
	buf = appendCompactU16(buf, 1)
	buf = append(buf, sig...)
	buf = append(buf, message...)

	return buf, base58.Encode(sig), nil
}

func toArray(pub ed25519.PublicKey) [pubkeyLen]byte {
	var a [pubkeyLen]byte
	copy(a[:], pub)
	return a
}

// encodeMessage serializes the legacy (non-versioned) message format:
// header, account keys, recent blockhash, instructions. Account
// ordering follows Solana's convention: writable signers, readonly
// signers, writable non-signers, readonly non-signers — which for
// scramjet's fixed instruction set is always payer, recipient, then
// the two readonly program ids.
func encodeMessage(accountKeys [][pubkeyLen]byte, blockhash [32]byte, instructions []compiledInstruction) []byte {
	var buf []byte

	numRequiredSignatures := byte(1)
	numReadonlySigned := byte(0)
	numReadonlyUnsigned := byte(2) // system program + compute budget program
	buf = append(buf, numRequiredSignatures, numReadonlySigned, numReadonlyUnsigned)

	buf = appendCompactU16(buf, len(accountKeys))
	for _, k := range accountKeys {
		buf = append(buf, k[:]...)
	}

	buf = append(buf, blockhash[:]...)

	buf = appendCompactU16(buf, len(instructions))
	for _, ix := range instructions {
		buf = append(buf, ix.programIDIndex)
		buf = appendCompactU16(buf, len(ix.accounts))
		buf = append(buf, ix.accounts...)
		buf = appendCompactU16(buf, len(ix.data))
		buf = append(buf, ix.data...)
	}

	return buf
}

// appendCompactU16 appends n encoded as Solana's shortvec compact-u16:
// 7 bits per byte, high bit set on every byte but the last.
func appendCompactU16(buf []byte, n int) []byte {
	for n >= 0x80 {
		buf = append(buf, byte(n&0x7f)|0x80)
		n >>= 7
	}
	return append(buf, byte(n))
}
