package keygen

import (
	"strings"
	"testing"

	"github.com/vanity-grinder/internal/errors"
)

func TestMatches(t *testing.T) {
	// a plausible Base58 address, fixed so the cases below are deterministic
	const addr = "ABc7fGhJkMnPqRsTuVwXyZ123456789abcdefghijkmn"

	tests := []struct {
		name string
		spec PatternSpec
		want bool
	}{
		{"exact prefix", PatternSpec{Pattern: "ABc", CaseSensitive: true}, true},
		{"wrong case prefix", PatternSpec{Pattern: "abc", CaseSensitive: true}, false},
		{"folded prefix", PatternSpec{Pattern: "abc", CaseSensitive: false}, true},
		{"exact suffix", PatternSpec{Pattern: "kmn", IsSuffix: true, CaseSensitive: true}, true},
		{"wrong case suffix", PatternSpec{Pattern: "KMN", IsSuffix: true, CaseSensitive: true}, false},
		{"folded suffix", PatternSpec{Pattern: "KMN", IsSuffix: true, CaseSensitive: false}, true},
		{"prefix not at start", PatternSpec{Pattern: "Bc7", CaseSensitive: true}, false},
		{"suffix not at end", PatternSpec{Pattern: "ABc", IsSuffix: true, CaseSensitive: true}, false},
		{"pattern longer than address", PatternSpec{Pattern: strings.Repeat("A", len(addr)+1), CaseSensitive: true}, false},
		{"whole address as prefix", PatternSpec{Pattern: addr, CaseSensitive: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(addr, tt.spec); got != tt.want {
				t.Errorf("Matches(%q, %+v) = %v, want %v", addr, tt.spec, got, tt.want)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	valid := []string{"A", "ab", "Cool", "123", "z9", strings.Repeat("x", 44)}
	for _, p := range valid {
		if err := ValidatePattern(p); err != nil {
			t.Errorf("ValidatePattern(%q) = %v, want nil", p, err)
		}
	}

	invalid := []struct {
		pattern string
		reason  string
	}{
		{"", "empty"},
		{"0x", "zero is excluded from Base58"},
		{"NO", "O is excluded from Base58"},
		{"III", "I is excluded from Base58"},
		{"ll", "l is excluded from Base58"},
		{"a b", "space"},
		{"a-b", "punctuation"},
		{"é", "non-ASCII"},
	}
	for _, tt := range invalid {
		if err := ValidatePattern(tt.pattern); err == nil {
			t.Errorf("ValidatePattern(%q) = nil, want error (%s)", tt.pattern, tt.reason)
		} else if !errors.IsValidation(err) {
			t.Errorf("ValidatePattern(%q) error is not a validation error: %v", tt.pattern, err)
		}
	}
}

func TestPatternSpecValidate(t *testing.T) {
	if err := (PatternSpec{Pattern: "Ab1"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (PatternSpec{Pattern: "O0"}).Validate(); err == nil {
		t.Error("expected validation error for excluded characters")
	}
}

func TestFoldedAlphabetSize(t *testing.T) {
	// the folding model behind the case-insensitive character space:
	// upper-casing the 58-symbol alphabet must leave exactly 33 distinct symbols
	folded := map[byte]struct{}{}
	upper := strings.ToUpper(Alphabet)
	for i := 0; i < len(upper); i++ {
		folded[upper[i]] = struct{}{}
	}
	if len(folded) != 33 {
		t.Errorf("distinct folded symbols = %d, want 33", len(folded))
	}
}
