package keygen

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property-based tests: every completed search result must satisfy the
// matcher for the spec it was produced against, so the matcher itself has to
// hold these invariants for arbitrary generated addresses.
func TestMatcherProperties(t *testing.T) {
	g := NewGenerator()
	newAddress := func() string {
		kp, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate() error: %v", err)
		}
		return kp.Address()
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("an address matches its own prefix", prop.ForAll(
		func(n int) bool {
			addr := newAddress()
			spec := PatternSpec{Pattern: addr[:n], CaseSensitive: true}
			return Matches(addr, spec)
		},
		gen.IntRange(1, 6),
	))

	properties.Property("an address matches its own suffix", prop.ForAll(
		func(n int) bool {
			addr := newAddress()
			spec := PatternSpec{Pattern: addr[len(addr)-n:], IsSuffix: true, CaseSensitive: true}
			return Matches(addr, spec)
		},
		gen.IntRange(1, 6),
	))

	properties.Property("folded patterns match regardless of case", prop.ForAll(
		func(n int, lower bool) bool {
			addr := newAddress()
			pattern := addr[:n]
			if lower {
				pattern = strings.ToLower(pattern)
			} else {
				pattern = strings.ToUpper(pattern)
			}
			return Matches(addr, PatternSpec{Pattern: pattern, CaseSensitive: false})
		},
		gen.IntRange(1, 6),
		gen.Bool(),
	))

	properties.Property("a differing character defeats a case-sensitive prefix", prop.ForAll(
		func(n int) bool {
			addr := newAddress()
			pattern := []byte(addr[:n])
			idx := strings.IndexByte(Alphabet, pattern[n-1])
			pattern[n-1] = Alphabet[(idx+1)%len(Alphabet)]
			return !Matches(addr, PatternSpec{Pattern: string(pattern), CaseSensitive: true})
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
