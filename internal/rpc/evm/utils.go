package evm

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// IsValidAddress accepts 0x-prefixed 20-byte hex. All-lower and all-upper
// forms carry no checksum; mixed case must match EIP-55.
func IsValidAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	body := addr[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return false
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ToChecksumAddress(addr) == addr
}

// ToChecksumAddress converts an Ethereum address to EIP-55 checksum format
func ToChecksumAddress(addr string) string {
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	if len(addr) != 40 {
		return "0x" + addr
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(addr))
	hashBytes := hash.Sum(nil)

	result := make([]byte, 42)
	result[0] = '0'
	result[1] = 'x'

	for i := 0; i < 40; i++ {
		c := addr[i]
		hashByte := hashBytes[i/2]
		var nibble byte
		if i%2 == 0 {
			nibble = hashByte >> 4
		} else {
			nibble = hashByte & 0x0f
		}

		// If hash nibble >= 8, capitalize the character (if it's a letter)
		if nibble >= 8 && c >= 'a' && c <= 'f' {
			result[2+i] = c - 32
		} else {
			result[2+i] = c
		}
	}

	return string(result)
}
