// Package random draws the random factors used by auctions and the
// recognition bridge. Draws happen at the request edge only; the decision
// packages receive the value as input.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// Source yields factors in [0, 1).
type Source interface {
	Float64() (float64, error)
}

type CryptoSource struct{}

// Float64 uses the top 53 bits of a crypto/rand word, so every value is
// exactly representable and strictly below 1.
func (CryptoSource) Float64() (float64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random factor: %w", err)
	}
	return float64(binary.LittleEndian.Uint64(b[:])>>11) / (1 << 53), nil
}

// Fixed always returns the same factor. It is used to replay a recorded
// decision.
type Fixed float64

func (f Fixed) Float64() (float64, error) {
	return float64(f), nil
}
