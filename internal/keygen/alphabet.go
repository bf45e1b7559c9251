// Package keygen generates ed25519 keypairs and matches their Base58-encoded
// public keys against vanity patterns.
package keygen

import (
	"fmt"

	"github.com/vanity-grinder/internal/errors"
)

// Alphabet is the Base58 alphabet used for address encoding. It omits the
// look-alike characters 0 (zero), O, I and l.
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var inAlphabet [256]bool

func init() {
	for i := 0; i < len(Alphabet); i++ {
		inAlphabet[Alphabet[i]] = true
	}
}

// ValidatePattern checks that a pattern can ever match a Base58 address.
// Validation is strict: the excluded look-alike characters (0 O I l) are
// rejected even for case-insensitive patterns. Returns an InvalidPatternError
// describing the first offending character.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return errors.NewInvalidPatternError(pattern, "pattern must not be empty")
	}
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if !inAlphabet[c] {
			return errors.NewInvalidPatternError(pattern,
				fmt.Sprintf("character %q at position %d is not in the Base58 alphabet", c, i))
		}
	}
	return nil
}
