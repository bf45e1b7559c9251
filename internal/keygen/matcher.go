package keygen

import "strings"

// PatternSpec describes what a candidate address must look like
type PatternSpec struct {
	// Pattern is the literal substring the address must start or end with
	Pattern string `json:"pattern"`
	// IsSuffix selects a trailing match instead of a leading one
	IsSuffix bool `json:"isSuffix"`
	// CaseSensitive selects exact comparison; otherwise both sides are
	// case-folded before comparing
	CaseSensitive bool `json:"caseSensitive"`
}

// Validate checks the pattern against the Base58 alphabet
func (s PatternSpec) Validate() error {
	return ValidatePattern(s.Pattern)
}

// Matches reports whether the candidate address satisfies the spec.
// It performs no pattern validation; call ValidatePattern at submission time.
func Matches(address string, spec PatternSpec) bool {
	pattern := spec.Pattern
	candidate := address
	if !spec.CaseSensitive {
		pattern = foldCase(pattern)
		candidate = foldCase(candidate)
	}
	if len(pattern) > len(candidate) {
		return false
	}
	if spec.IsSuffix {
		return strings.HasSuffix(candidate, pattern)
	}
	return strings.HasPrefix(candidate, pattern)
}

// foldCase maps both cases onto upper case for case-insensitive matching.
// Folding upward leaves 9 digits plus the 24 uppercase letters that survive
// in Base58 (I and O are excluded), so the folded symbol space has
// 9 + 24 = 33 distinct values. probability.CaseFoldedSpace relies on the
// same model.
func foldCase(s string) string {
	return strings.ToUpper(s)
}
