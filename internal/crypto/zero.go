package crypto

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// Zeroize overwrites a byte slice with zeros to clear sensitive data from memory
func Zeroize(data ...[]byte) {
	for _, b := range data {
		memguard.WipeBytes(b)
	}
}

// ConstantTimeCompare performs constant-time comparison
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
