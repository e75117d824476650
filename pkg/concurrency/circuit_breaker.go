package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned by Limiter.Acquire while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the current state of a CircuitBreaker.
type BreakerState int32

const (
	// BreakerClosed allows operations through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects operations until the reset timeout elapses.
	BreakerOpen

	// BreakerHalfOpen probes whether the downstream has recovered.
	BreakerHalfOpen
)

// halfOpenSuccesses is the number of consecutive successes required in the
// half-open state before the circuit closes again.
const halfOpenSuccesses = 5

// CircuitBreaker sheds load when external task dispatch fails repeatedly,
// protecting downstream collaborators during outages.
type CircuitBreaker struct {
	state            atomic.Int32
	failures         atomic.Int64
	successes        atomic.Int64
	lastFailureNanos atomic.Int64
	failureThreshold int64
	resetTimeout     time.Duration
	mu               sync.Mutex
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(failureThreshold int64, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 10
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// IsOpen reports whether operations should be rejected. An open breaker whose
// reset timeout has elapsed transitions to half-open and admits the caller.
func (cb *CircuitBreaker) IsOpen() bool {
	if BreakerState(cb.state.Load()) != BreakerOpen {
		return false
	}
	last := cb.lastFailureNanos.Load()
	if last > 0 && time.Since(time.Unix(0, last)) > cb.resetTimeout {
		cb.transition(BreakerHalfOpen)
		return false
	}
	return true
}

// RecordSuccess notes a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failures.Store(0)
	if BreakerState(cb.state.Load()) == BreakerHalfOpen {
		if cb.successes.Add(1) >= halfOpenSuccesses {
			cb.transition(BreakerClosed)
		}
	}
}

// RecordFailure notes a failed operation, opening the circuit when the
// threshold is crossed or when probing in half-open state.
func (cb *CircuitBreaker) RecordFailure() {
	cb.successes.Store(0)
	cb.lastFailureNanos.Store(time.Now().UnixNano())

	failures := cb.failures.Add(1)
	switch BreakerState(cb.state.Load()) {
	case BreakerClosed:
		if failures >= cb.failureThreshold {
			cb.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		cb.transition(BreakerOpen)
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	return BreakerState(cb.state.Load())
}

// Reset forces the breaker back to closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.transition(BreakerClosed)
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.lastFailureNanos.Store(0)
}

func (cb *CircuitBreaker) transition(next BreakerState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if BreakerState(cb.state.Load()) == next {
		return
	}
	cb.state.Store(int32(next))

	switch next {
	case BreakerClosed:
		cb.failures.Store(0)
		cb.successes.Store(0)
	case BreakerHalfOpen:
		cb.successes.Store(0)
	}
}

// String returns the human-readable state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}
