package worker

import "time"

const (
	// throttleWindow is the measurement window for CPU accounting
	throttleWindow = time.Second
	// maxThrottleSleep caps a single pause so cancellation stays responsive
	maxThrottleSleep = 250 * time.Millisecond
)

// throttleSleep computes how long a worker should pause so that its busy
// time stays at or below limitPercent of wall time within the current
// window. A limit of 100 or more never sleeps.
func throttleSleep(busy, elapsed time.Duration, limitPercent int) time.Duration {
	if limitPercent >= 100 || limitPercent <= 0 {
		return 0
	}

	// busy/wall <= limit/100 requires wall >= busy*100/limit
	targetWall := busy * 100 / time.Duration(limitPercent)
	sleep := targetWall - elapsed
	if sleep <= 0 {
		return 0
	}
	if sleep > maxThrottleSleep {
		sleep = maxThrottleSleep
	}
	return sleep
}

// throttle accumulates per-batch busy time and tells the worker when to
// yield the CPU. Not safe for concurrent use; each worker owns one.
type throttle struct {
	limitPercent int
	windowStart  time.Time
	busy         time.Duration
}

func newThrottle(limitPercent int, now time.Time) *throttle {
	return &throttle{
		limitPercent: limitPercent,
		windowStart:  now,
	}
}

// observe records one batch worth of busy time and returns the pause the
// worker owes. The window resets once it has fully elapsed so old history
// cannot mask a recent burst.
func (t *throttle) observe(now time.Time, batchBusy time.Duration) time.Duration {
	t.busy += batchBusy
	elapsed := now.Sub(t.windowStart)

	sleep := throttleSleep(t.busy, elapsed, t.limitPercent)

	if elapsed >= throttleWindow {
		t.windowStart = now
		t.busy = 0
	}

	return sleep
}
