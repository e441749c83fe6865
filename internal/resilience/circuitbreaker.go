// Package resilience guards the emotion pipeline's remote backends. Scoring
// and transcription both talk to external model servers (a whisper-server, an
// LLM endpoint, a fusion classifier) that tend to fail in bursts: a
// [CircuitBreaker] stops hammering a backend that keeps erroring, and a
// [FallbackGroup] routes around the open breaker to the next configured
// backend until the first one recovers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker is
// open and the reset timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after
	// MaxFailures consecutive failures, left when the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to test
	// whether the backend has recovered. Probes all succeeding closes the
	// breaker; any probe failing re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take defaults
// sized for inference backends, where a scoring request costs hundreds of
// milliseconds and retry storms are expensive.
type CircuitBreakerConfig struct {
	// Name labels the backend in log messages (e.g. "whisper", "remote").
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing the
	// backend again. Default: 15s.
	ResetTimeout time.Duration

	// HalfOpenMax is how many probe calls the half-open state admits, and
	// how many must succeed to close the breaker. Default: 2.
	HalfOpenMax int
}

// CircuitBreaker is a three-state (closed, open, half-open) breaker around a
// single backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failStreak int
	lastErrAt  time.Time
	probes     int
	probeFails int
}

// NewCircuitBreaker creates a breaker from cfg, defaulting zero fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 15 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 2
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker admits the call, otherwise it returns
// [ErrCircuitOpen] without touching the backend. fn's error is passed
// through unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(probe, err)
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastErrAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes, cb.probeFails = 0, 0
		slog.Info("breaker half-open, probing backend", "backend", cb.name)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.halfOpenMax {
			// Probe budget spent; wait for the in-flight probes to settle.
			return false, ErrCircuitOpen
		}
		cb.probes++
		return true, nil
	}
	return false, nil
}

// settle applies the call outcome to the breaker state.
func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if !probe {
			cb.failStreak = 0
			return
		}
		if cb.probes-cb.probeFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failStreak = 0
			cb.probes, cb.probeFails = 0, 0
			slog.Info("breaker closed, backend recovered", "backend", cb.name)
		}
		return
	}

	cb.lastErrAt = time.Now()
	if probe {
		cb.probeFails++
		cb.state = StateOpen
		cb.failStreak = cb.maxFailures
		slog.Warn("breaker re-opened, probe failed", "backend", cb.name)
		return
	}
	cb.failStreak++
	if cb.failStreak >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("breaker opened, backend failing",
			"backend", cb.name, "consecutive_failures", cb.failStreak)
	}
}

// State reports the breaker's current state. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen]; the stored state changes on
// the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastErrAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probes, cb.probeFails = 0, 0
	slog.Info("breaker manually reset", "backend", cb.name)
}
