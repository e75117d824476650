// Package concurrency provides the shared concurrency primitives for the
// perspective pipeline: a semaphore-based limiter with wait metrics and a
// circuit breaker guarding external task dispatch.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time snapshot of limiter activity.
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Limiter bounds the number of task executions in flight. Fan-out branches
// acquire a slot before dispatching external work and release it on return.
type Limiter struct {
	sem     chan struct{}
	active  atomic.Int64
	breaker *CircuitBreaker

	acquired   atomic.Int64
	released   atomic.Int64
	peak       atomic.Int64
	waitTimeNs atomic.Int64
}

// NewLimiter creates a limiter allowing at most maxConcurrent slots. Values
// below one are raised to one.
func NewLimiter(maxConcurrent int) *Limiter {
	return NewLimiterWithBreaker(maxConcurrent, NewCircuitBreaker(100, 30*time.Second))
}

// NewLimiterWithBreaker creates a limiter with a caller-supplied circuit breaker.
func NewLimiterWithBreaker(maxConcurrent int, breaker *CircuitBreaker) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		breaker: breaker,
	}
}

// Acquire blocks until a slot is available or the context is cancelled.
// Returns ErrCircuitOpen without blocking when the breaker is open.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.breaker != nil && l.breaker.IsOpen() {
		return ErrCircuitOpen
	}

	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		l.waitTimeNs.Add(time.Since(start).Nanoseconds())
		l.acquired.Add(1)
		l.updatePeak(l.active.Add(1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the limiter.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
		l.released.Add(1)
	default:
		// Release without a matching Acquire; nothing to do.
	}
}

// RecordSuccess feeds a successful execution to the circuit breaker.
func (l *Limiter) RecordSuccess() {
	if l.breaker != nil {
		l.breaker.RecordSuccess()
	}
}

// RecordFailure feeds a failed execution to the circuit breaker.
func (l *Limiter) RecordFailure() {
	if l.breaker != nil {
		l.breaker.RecordFailure()
	}
}

// CurrentActive returns the number of slots currently held.
func (l *Limiter) CurrentActive() int64 {
	return l.active.Load()
}

// Snapshot returns a copy of the limiter metrics.
func (l *Limiter) Snapshot() Metrics {
	return Metrics{
		TotalAcquired:   l.acquired.Load(),
		TotalReleased:   l.released.Load(),
		PeakConcurrent:  l.peak.Load(),
		TotalWaitTimeNs: l.waitTimeNs.Load(),
	}
}

// AverageWaitTime reports the mean time spent waiting for a slot.
func (l *Limiter) AverageWaitTime() time.Duration {
	m := l.Snapshot()
	if m.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(m.TotalWaitTimeNs / m.TotalAcquired)
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := l.peak.Load()
		if current <= peak || l.peak.CompareAndSwap(peak, current) {
			return
		}
	}
}
