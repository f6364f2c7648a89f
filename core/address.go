package core

import (
	"encoding/hex"
	"fmt"
)

// Address is a 20-byte opaque account identifier, identical in shape to the
// host chain's account addresses. The core never interprets the bytes beyond
// equality and hex formatting.
type Address [20]byte

// Hex returns the "0x"-prefixed lowercase hex encoding of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short returns a truncated hex form suitable for log lines.
func (a Address) Short() string {
	h := a.Hex()
	if len(h) <= 10 {
		return h
	}
	return h[:6] + ".." + h[len(h)-4:]
}

// IsZero reports whether the address is the all-zero sentinel, used to mean
// "no address" in contexts such as an unset access_signer.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a "0x"-prefixed or bare hex string into an Address.
// It fails if the decoded length does not match exactly 20 bytes.
func ParseAddress(s string) (Address, error) {
	var a Address
	trimmed := s
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		trimmed = s[2:]
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}
