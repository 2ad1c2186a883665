// Package numgen generates the numeric identifiers for accounts:
// the 11-digit account number and the 20-digit interbank number.
//
// Values are random, not sequential, so they are not unique by construction;
// the store's unique indexes catch collisions and the caller regenerates.
package numgen

import (
	"crypto/rand"
	"fmt"
)

// Numeric returns a random decimal digit string of exactly length characters.
// Leading zeros are allowed. It panics only if the system random source is
// unreadable, which is not a recoverable condition.
func Numeric(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("numgen: reading random source: %v", err))
	}
	digits := make([]byte, length)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits)
}
