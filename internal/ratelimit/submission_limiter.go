// Package ratelimit provides per-requester submission budgets backed by Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default submission budget configuration values.
const (
	DefaultSubmitLimit  = 10          // submissions per window per requester
	DefaultSubmitWindow = time.Minute // fixed window duration
)

// KeyPrefixSubmit namespaces submission counters in Redis.
const KeyPrefixSubmit = "vanity:submit:"

// SubmissionLimiter caps how many vanity jobs a single requester may submit
// per fixed window. Counters live in Redis so the cap holds across server
// instances. Grinding a vanity address is expensive, so this guards the
// worker pool rather than the HTTP surface; the cheap per-IP token bucket
// in the API layer handles the rest of the routes.
type SubmissionLimiter struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	keyTTL time.Duration
}

// SubmissionLimiterConfig holds configuration for the submission limiter.
type SubmissionLimiterConfig struct {
	// Redis is the client used for cross-instance coordination. Required.
	Redis redis.Cmdable

	// Limit is the number of submissions allowed per requester per window.
	// Default: 10.
	Limit int

	// Window is the fixed window duration. Default: 1m.
	Window time.Duration
}

// SubmissionUsage reports a requester's consumption in the current window.
type SubmissionUsage struct {
	Requester   string        `json:"requester"`
	Used        int           `json:"used"`
	Limit       int           `json:"limit"`
	WindowStart time.Time     `json:"windowStart"`
	ResetsIn    time.Duration `json:"resetsIn"`
}

// Validate checks if the configuration is valid.
func (c *SubmissionLimiterConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Limit < 0 {
		return errors.New("submission limit cannot be negative")
	}
	if c.Window < 0 {
		return errors.New("window cannot be negative")
	}
	return nil
}

// NewSubmissionLimiter creates a new limiter with the given configuration.
func NewSubmissionLimiter(cfg *SubmissionLimiterConfig) (*SubmissionLimiter, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	limit := cfg.Limit
	if limit == 0 {
		limit = DefaultSubmitLimit
	}

	window := cfg.Window
	if window == 0 {
		window = DefaultSubmitWindow
	}

	return &SubmissionLimiter{
		redis:  cfg.Redis,
		limit:  limit,
		window: window,
		keyTTL: 2 * window,
	}, nil
}

// windowStart returns the aligned start of the current fixed window.
func (l *SubmissionLimiter) windowStart() time.Time {
	return time.Now().Truncate(l.window)
}

// key returns the Redis key for a requester in the given window.
func (l *SubmissionLimiter) key(requester string, windowStart time.Time) string {
	return KeyPrefixSubmit + requester + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// Allow attempts to consume one submission from the requester's budget.
//
// Returns:
//   - allowed: true if the submission fits within the budget
//   - retryAfter: how long to wait for a fresh window if not allowed
//   - err: a Redis failure; the caller decides whether to fail open
func (l *SubmissionLimiter) Allow(ctx context.Context, requester string) (bool, time.Duration, error) {
	ws := l.windowStart()
	key := l.key(requester, ws)

	// Lua script for atomic check-and-increment so concurrent submissions
	// cannot overshoot the budget
	script := redis.NewScript(`
		local key = KEYS[1]
		local limit = tonumber(ARGV[1])
		local ttl = tonumber(ARGV[2])

		local used = tonumber(redis.call('GET', key) or '0')
		if used >= limit then
			return {0, used}
		end

		used = redis.call('INCR', key)
		redis.call('EXPIRE', key, ttl)

		return {1, used}
	`)

	ttlSeconds := int(l.keyTTL.Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	result, err := script.Run(ctx, l.redis, []string{key}, l.limit, ttlSeconds).Int64Slice()
	if err != nil {
		return false, l.retryAfter(ws), fmt.Errorf("submission limiter: %w", err)
	}

	if result[0] != 1 {
		return false, l.retryAfter(ws), nil
	}

	return true, 0, nil
}

// retryAfter returns the time until the next window starts.
func (l *SubmissionLimiter) retryAfter(windowStart time.Time) time.Duration {
	wait := time.Until(windowStart.Add(l.window))
	if wait < 0 {
		wait = 0
	}
	// Small buffer to land inside the new window
	return wait + time.Millisecond
}

// Usage returns the requester's consumption in the current window.
func (l *SubmissionLimiter) Usage(ctx context.Context, requester string) (*SubmissionUsage, error) {
	ws := l.windowStart()

	used, err := l.redis.Get(ctx, l.key(requester, ws)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("submission limiter usage: %w", err)
	}

	return &SubmissionUsage{
		Requester:   requester,
		Used:        used,
		Limit:       l.limit,
		WindowStart: ws,
		ResetsIn:    l.retryAfter(ws),
	}, nil
}

// Limit returns the configured submissions-per-window cap.
func (l *SubmissionLimiter) Limit() int {
	return l.limit
}

// Window returns the configured window duration.
func (l *SubmissionLimiter) Window() time.Duration {
	return l.window
}
