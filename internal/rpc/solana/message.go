package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	pubkeySize    = 32
	signatureSize = 64

	// SystemProgram::Transfer
	systemTransferIndex uint32 = 2
)

// systemProgramID is 11111111111111111111111111111111.
var systemProgramID [pubkeySize]byte

// transferMessage builds a legacy message moving lamports from one account to
// another via the system program. from is the sole signer and fee payer.
func transferMessage(from, to [pubkeySize]byte, lamports uint64, recentBlockhash [pubkeySize]byte) []byte {
	keys := [][pubkeySize]byte{from}
	toIndex := byte(0)
	if to != from {
		keys = append(keys, to)
		toIndex = 1
	}
	keys = append(keys, systemProgramID)
	programIndex := byte(len(keys) - 1)

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:], lamports)

	readonlyUnsigned := byte(1)
	msg := []byte{1, 0, readonlyUnsigned}

	msg = appendCompactU16(msg, len(keys))
	for _, k := range keys {
		msg = append(msg, k[:]...)
	}
	msg = append(msg, recentBlockhash[:]...)

	msg = appendCompactU16(msg, 1)
	msg = append(msg, programIndex)
	msg = appendCompactU16(msg, 2)
	msg = append(msg, 0, toIndex)
	msg = appendCompactU16(msg, len(data))
	msg = append(msg, data...)
	return msg
}

// wireTransaction prefixes message with its signatures.
func wireTransaction(message []byte, signatures ...[]byte) []byte {
	out := appendCompactU16(nil, len(signatures))
	for _, s := range signatures {
		out = append(out, s...)
	}
	return append(out, message...)
}

// appendCompactU16 encodes n as Solana's shortvec: 7 bits per byte, high bit
// set on all but the last.
func appendCompactU16(b []byte, n int) []byte {
	v := uint16(n)
	for {
		elem := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

func decodePubkey(s string) ([pubkeySize]byte, error) {
	var out [pubkeySize]byte
	raw, err := base58.Decode(s)
	if err != nil {
		return out, err
	}
	if len(raw) != pubkeySize {
		return out, fmt.Errorf("want %d bytes, got %d", pubkeySize, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
