package worker

import (
	"testing"
	"time"
)

func TestThrottleSleep(t *testing.T) {
	tests := []struct {
		name    string
		busy    time.Duration
		elapsed time.Duration
		limit   int
		want    time.Duration
	}{
		{
			name:    "full speed never sleeps",
			busy:    100 * time.Millisecond,
			elapsed: 100 * time.Millisecond,
			limit:   100,
			want:    0,
		},
		{
			name:    "nonpositive limit treated as unthrottled",
			busy:    100 * time.Millisecond,
			elapsed: 100 * time.Millisecond,
			limit:   0,
			want:    0,
		},
		{
			name:    "exactly on budget",
			busy:    50 * time.Millisecond,
			elapsed: 100 * time.Millisecond,
			limit:   50,
			want:    0,
		},
		{
			name:    "ahead of budget owes the difference",
			busy:    100 * time.Millisecond,
			elapsed: 100 * time.Millisecond,
			limit:   50,
			want:    100 * time.Millisecond,
		},
		{
			name:    "quarter limit",
			busy:    50 * time.Millisecond,
			elapsed: 80 * time.Millisecond,
			limit:   25,
			want:    120 * time.Millisecond,
		},
		{
			name:    "sleep is capped",
			busy:    time.Second,
			elapsed: 0,
			limit:   50,
			want:    maxThrottleSleep,
		},
		{
			name:    "behind budget owes nothing",
			busy:    10 * time.Millisecond,
			elapsed: 500 * time.Millisecond,
			limit:   50,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := throttleSleep(tt.busy, tt.elapsed, tt.limit)
			if got != tt.want {
				t.Errorf("throttleSleep(%v, %v, %d) = %v, want %v",
					tt.busy, tt.elapsed, tt.limit, got, tt.want)
			}
		})
	}
}

func TestThrottleObserve_WindowReset(t *testing.T) {
	start := time.Unix(1000, 0)
	th := newThrottle(50, start)

	// First batch: 100ms busy in a 100ms window, twice the 50% budget
	if got := th.observe(start.Add(100*time.Millisecond), 100*time.Millisecond); got != 100*time.Millisecond {
		t.Errorf("observe() = %v, want 100ms", got)
	}

	// Window has fully elapsed: no debt, and the accounting resets
	if got := th.observe(start.Add(1100*time.Millisecond), 400*time.Millisecond); got != 0 {
		t.Errorf("observe() = %v, want 0", got)
	}

	// Fresh window starts from scratch rather than inheriting old busy time
	if got := th.observe(start.Add(1200*time.Millisecond), 100*time.Millisecond); got != 100*time.Millisecond {
		t.Errorf("observe() after reset = %v, want 100ms", got)
	}
}
