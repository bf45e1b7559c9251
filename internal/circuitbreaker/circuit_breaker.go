// Package circuitbreaker provides a consecutive-failure circuit breaker.
// It guards the ClickHouse telemetry sink so a down analytics store sheds
// samples instead of stalling the generator's bookkeeping.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vanity-grinder/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means calls pass through
	StateClosed State = "closed"
	// StateOpen means calls fail fast with ErrCircuitOpen
	StateOpen State = "open"
	// StateHalfOpen means a limited number of probe calls are allowed
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker
type Config struct {
	Name string
	// MaxConsecutiveFailures opens the circuit once reached
	MaxConsecutiveFailures int
	// OpenTimeout is how long the circuit stays open before probing
	OpenTimeout time.Duration
	// HalfOpenProbes is how many successful probes close the circuit again
	HalfOpenProbes int
}

// DefaultConfig returns a circuit breaker configuration suitable for a
// best-effort sink
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                   name,
		MaxConsecutiveFailures: 5,
		OpenTimeout:            30 * time.Second,
		HalfOpenProbes:         2,
	}
}

// CircuitBreaker tracks consecutive failures and fails fast while open
type CircuitBreaker struct {
	name           string
	maxFailures    int
	openTimeout    time.Duration
	halfOpenProbes int

	mu               sync.Mutex
	state            State
	consecutiveFails int
	probeSuccesses   int
	openedAt         time.Time
}

// New creates a circuit breaker from config
func New(config *Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:           config.Name,
		maxFailures:    config.MaxConsecutiveFailures,
		openTimeout:    config.OpenTimeout,
		halfOpenProbes: config.HalfOpenProbes,
		state:          StateClosed,
	}
}

// Execute runs fn under breaker protection. While the circuit is open it
// returns ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current breaker state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.openTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probeSuccesses = 0
		logging.L().Component("circuitbreaker").WithField("name", cb.name).
			Info("circuit half-open, probing")
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecutiveFails++
		switch cb.state {
		case StateHalfOpen:
			cb.open()
		case StateClosed:
			if cb.consecutiveFails >= cb.maxFailures {
				cb.open()
			}
		}
		return
	}

	cb.consecutiveFails = 0
	if cb.state == StateHalfOpen {
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.halfOpenProbes {
			cb.state = StateClosed
			logging.L().Component("circuitbreaker").WithField("name", cb.name).
				Info("circuit closed after recovery")
		}
	}
}

// open transitions to the open state; callers hold cb.mu
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	logging.L().Component("circuitbreaker").WithFields(map[string]interface{}{
		"name":             cb.name,
		"consecutiveFails": cb.consecutiveFails,
	}).Warn("circuit opened")
}
