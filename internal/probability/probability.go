// Package probability provides pure estimators for the vanity search space:
// effective alphabet sizes, expected attempt counts, luck ratios and timeout
// recommendations. Nothing in this package has side effects.
package probability

import (
	"math"
	"time"
)

const (
	// CaseSensitiveSpace is the effective alphabet size for case-sensitive
	// patterns: all 58 Base58 symbols count separately.
	CaseSensitiveSpace = 58

	// CaseFoldedSpace is the effective alphabet size for case-insensitive
	// patterns. Folding maps both cases to upper case: Base58 carries 9
	// digits, 24 uppercase letters (I and O are excluded) and 25 lowercase
	// letters (l is excluded); the lowercase letters collapse onto the 24
	// surviving uppercase forms, leaving 9 + 24 = 33 distinct symbols.
	CaseFoldedSpace = 33
)

const (
	// MinRecommendedTimeout floors timeout recommendations so short patterns
	// still get a usable deadline.
	MinRecommendedTimeout = 30 * time.Second

	// MaxRecommendedTimeout caps timeout recommendations; longer searches
	// should be resubmitted rather than waited on in one sitting.
	MaxRecommendedTimeout = 24 * time.Hour
)

// CharacterSpace returns the effective alphabet size for probability
// estimates under the given case rule.
func CharacterSpace(caseSensitive bool) int {
	if caseSensitive {
		return CaseSensitiveSpace
	}
	return CaseFoldedSpace
}

// TheoreticalAttempts returns the expected search-space size for a pattern:
// characterSpace ^ patternLength. Returns 0 for non-positive lengths.
// The result is exact for every pattern length short enough to matter;
// float64 carries integers exactly up to 2^53.
func TheoreticalAttempts(patternLength int, caseSensitive bool) float64 {
	if patternLength < 1 {
		return 0
	}
	return intPow(float64(CharacterSpace(caseSensitive)), patternLength)
}

// LuckFactor expresses how lucky a finished search was:
// theoretical / actual * 100. The value is a rarity indicator, not an
// efficiency score: it is unbounded above (finding a match in far fewer
// attempts than expected yields values well over 100) and must not be
// treated as a [0,100] percentage. Returns 0 when actualAttempts is not
// positive.
func LuckFactor(actualAttempts int64, theoreticalAttempts float64) float64 {
	if actualAttempts <= 0 {
		return 0
	}
	return theoreticalAttempts / float64(actualAttempts) * 100
}

// RecommendedTimeout scales an observed baseline search time by the growth
// of the search space between the baseline pattern length and the requested
// one, clamped to [MinRecommendedTimeout, MaxRecommendedTimeout].
func RecommendedTimeout(patternLength int, caseSensitive bool, baselineTime time.Duration, baselineLength int) time.Duration {
	if patternLength < 1 || baselineLength < 1 || baselineTime <= 0 {
		return MinRecommendedTimeout
	}

	space := float64(CharacterSpace(caseSensitive))
	delta := patternLength - baselineLength

	var scale float64
	switch {
	case delta >= 0:
		scale = intPow(space, delta)
	default:
		scale = 1 / intPow(space, -delta)
	}

	estimate := float64(baselineTime) * scale
	if estimate < float64(MinRecommendedTimeout) {
		return MinRecommendedTimeout
	}
	if estimate > float64(MaxRecommendedTimeout) {
		return MaxRecommendedTimeout
	}
	return time.Duration(estimate)
}

// EstimatedDuration converts an expected attempt count into wall-clock time
// at the given throughput. Returns 0 when the rate is not positive; results
// beyond the representable range saturate.
func EstimatedDuration(theoreticalAttempts float64, attemptsPerSec float64) time.Duration {
	if attemptsPerSec <= 0 || theoreticalAttempts <= 0 {
		return 0
	}
	seconds := theoreticalAttempts / attemptsPerSec
	if seconds > float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}

// intPow raises base to a non-negative integer exponent by repeated
// multiplication, which stays exact where math.Pow may not.
func intPow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
