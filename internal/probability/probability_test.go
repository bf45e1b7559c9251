package probability

import (
	"testing"
	"time"
)

func TestCharacterSpace(t *testing.T) {
	if got := CharacterSpace(true); got != 58 {
		t.Errorf("CharacterSpace(true) = %d, want 58", got)
	}
	if got := CharacterSpace(false); got != 33 {
		t.Errorf("CharacterSpace(false) = %d, want 33", got)
	}
}

func TestTheoreticalAttempts(t *testing.T) {
	tests := []struct {
		length        int
		caseSensitive bool
		want          float64
	}{
		{1, true, 58},
		{1, false, 33},
		{2, true, 3364},
		{2, false, 1089},
		{3, false, 35937},
		{3, true, 195112},
		{0, true, 0},
		{-1, false, 0},
	}

	for _, tt := range tests {
		if got := TheoreticalAttempts(tt.length, tt.caseSensitive); got != tt.want {
			t.Errorf("TheoreticalAttempts(%d, %v) = %v, want %v", tt.length, tt.caseSensitive, got, tt.want)
		}
	}
}

func TestLuckFactor(t *testing.T) {
	tests := []struct {
		name        string
		actual      int64
		theoretical float64
		want        float64
	}{
		{"exactly expected", 35937, 35937, 100},
		{"twice as lucky", 17968, 35936, 200},
		{"half as lucky", 200, 100, 50},
		{"first try on a big space", 1, 35937, 3593700},
		{"zero attempts", 0, 35937, 0},
		{"negative attempts", -5, 35937, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LuckFactor(tt.actual, tt.theoretical); got != tt.want {
				t.Errorf("LuckFactor(%d, %v) = %v, want %v", tt.actual, tt.theoretical, got, tt.want)
			}
		})
	}
}

func TestLuckFactorIsUnboundedAbove(t *testing.T) {
	// guard against anyone "fixing" the metric into a bounded percentage
	if got := LuckFactor(1, TheoreticalAttempts(4, true)); got <= 100 {
		t.Errorf("LuckFactor for a first-attempt match = %v, expected far above 100", got)
	}
}

func TestRecommendedTimeout(t *testing.T) {
	baseline := 5 * time.Second

	t.Run("clamps short patterns up to the minimum", func(t *testing.T) {
		if got := RecommendedTimeout(1, true, baseline, 1); got != MinRecommendedTimeout {
			t.Errorf("got %s, want %s", got, MinRecommendedTimeout)
		}
	})

	t.Run("scales by the character space per extra character", func(t *testing.T) {
		want := time.Duration(5*33*33) * time.Second
		if got := RecommendedTimeout(3, false, baseline, 1); got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	})

	t.Run("clamps long patterns down to the maximum", func(t *testing.T) {
		if got := RecommendedTimeout(8, true, baseline, 1); got != MaxRecommendedTimeout {
			t.Errorf("got %s, want %s", got, MaxRecommendedTimeout)
		}
	})

	t.Run("shrinks below the baseline length", func(t *testing.T) {
		// 30 minutes / 58 is still above the floor
		if got := RecommendedTimeout(1, true, 30*time.Minute, 2); got != 30*time.Minute/58 {
			t.Errorf("got %s, want %s", got, 30*time.Minute/58)
		}
	})

	t.Run("degenerate inputs fall back to the minimum", func(t *testing.T) {
		if got := RecommendedTimeout(0, true, baseline, 1); got != MinRecommendedTimeout {
			t.Errorf("got %s", got)
		}
		if got := RecommendedTimeout(3, true, 0, 1); got != MinRecommendedTimeout {
			t.Errorf("got %s", got)
		}
	})
}

func TestEstimatedDuration(t *testing.T) {
	if got := EstimatedDuration(35937, 1000); got != time.Duration(35.937*float64(time.Second)) {
		t.Errorf("got %s", got)
	}
	if got := EstimatedDuration(100, 0); got != 0 {
		t.Errorf("zero rate should yield 0, got %s", got)
	}
	// absurdly large spaces saturate instead of overflowing
	huge := TheoreticalAttempts(20, true)
	if got := EstimatedDuration(huge, 1); got <= 0 {
		t.Errorf("saturating estimate should stay positive, got %s", got)
	}
}
