package com

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// NumericId derives a stable decimal id of the given length from a seed,
// the domain separates ids of different kinds made from the same seed.
func NumericId(domain, seed string, digits int) string {
	sum := sha256.Sum256([]byte(domain + ":" + seed))
	n := binary.BigEndian.Uint64(sum[:8]) % uint64(math.Pow10(digits))
	return fmt.Sprintf("%0*d", digits, n)
}

// HexId derives a hex id from the seeds joined with a dash.
func HexId(length int, seeds ...string) string {
	s := ""
	for i, x := range seeds {
		if i > 0 {
			s += "-"
		}
		s += x
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:length]
}
