package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), FlushConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("expected success")
	}
	if calls != 1 || result.Attempts != 1 {
		t.Errorf("calls = %d, attempts = %d, want 1/1", calls, result.Attempts)
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result := WithExponentialBackoff(context.Background(), FlushConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if !result.Success {
		t.Errorf("expected success, last error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestExhaustsAttemptBudget(t *testing.T) {
	wantErr := errors.New("still broken")
	result := WithExponentialBackoff(context.Background(), FlushConfig(), func(ctx context.Context, attempt int) error {
		return wantErr
	})

	if result.Success {
		t.Error("expected failure")
	}
	if result.Attempts != FlushConfig().MaxAttempts {
		t.Errorf("attempts = %d, want %d", result.Attempts, FlushConfig().MaxAttempts)
	}
	if !errors.Is(result.LastError, wantErr) {
		t.Errorf("last error = %v, want %v", result.LastError, wantErr)
	}
}

func TestStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	result := WithExponentialBackoff(ctx, DefaultConfig(), func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if result.Success {
		t.Error("expected failure after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries after cancel)", calls)
	}
}

func TestDoWrapsFailure(t *testing.T) {
	err := Do(context.Background(), FlushConfig(), func(ctx context.Context, attempt int) error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := &Config{MaxAttempts: 10, InitialDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond, Multiplier: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 400 * time.Millisecond}, // capped
	}
	for _, tt := range tests {
		if got := backoffDelay(cfg, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
