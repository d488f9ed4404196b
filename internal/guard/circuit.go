// Package guard implements the protective layers wrapped around LLM
// invocation. This file provides the upstream circuit breaker.
package guard

import (
	"sync"
	"time"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, reject requests
	CircuitHalfOpen                     // Testing recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func parseCircuitState(s string) CircuitState {
	switch s {
	case "open":
		return CircuitOpen
	case "half-open":
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// Breaker implements the circuit breaker pattern for the single upstream
// model API. A streak of consecutive failures opens it; after the open
// window one probe call is let through, and its outcome decides between
// closing again and re-opening.
//
// StateChanged, when set, is called (outside the lock) with a snapshot on
// every transition so the state can be persisted across restarts.
type Breaker struct {
	Name         string
	StateChanged func(domain.CircuitStateRecord)

	mu              sync.Mutex
	state           CircuitState
	failures        int
	probing         bool
	lastStateChange time.Time

	failThreshold int
	openTimeout   time.Duration
}

// NewBreaker constructs a closed Breaker that opens after failThreshold
// consecutive failures and stays open for openTimeout.
func NewBreaker(name string, failThreshold int, openTimeout time.Duration) *Breaker {
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openTimeout <= 0 {
		openTimeout = time.Minute
	}
	return &Breaker{
		Name:            name,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
		failThreshold:   failThreshold,
		openTimeout:     openTimeout,
	}
}

// Allow checks whether a call should be let through. An open breaker whose
// window has elapsed transitions to half-open and admits the probe. While
// half-open exactly one probe is admitted; every other call fails fast until
// the probe's outcome is recorded.
func (b *Breaker) Allow() error {
	b.mu.Lock()

	switch b.state {
	case CircuitClosed:
		b.mu.Unlock()
		return nil
	case CircuitOpen:
		if time.Since(b.lastStateChange) >= b.openTimeout {
			b.transition(CircuitHalfOpen)
			b.probing = true
			snap := b.snapshot()
			b.mu.Unlock()
			b.notify(snap)
			return nil
		}
		b.mu.Unlock()
		return ErrCircuitOpen
	default: // half-open
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
		b.mu.Unlock()
		return nil
	}
}

// RecordSuccess records a successful upstream call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case CircuitHalfOpen:
		b.transition(CircuitClosed)
		b.failures = 0
		changed = true
	case CircuitClosed:
		changed = b.failures != 0
		b.failures = 0
	}
	snap := b.snapshot()
	b.mu.Unlock()
	if changed {
		b.notify(snap)
	}
}

// RecordFailure records a failed upstream call. In the closed state it
// counts toward the failure streak; in half-open any failure re-opens.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	changed := false
	switch b.state {
	case CircuitClosed:
		b.failures++
		changed = true
		if b.failures >= b.failThreshold {
			b.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transition(CircuitOpen)
		changed = true
	}
	snap := b.snapshot()
	b.mu.Unlock()
	if changed {
		b.notify(snap)
	}
}

// State returns the current state, applying the lazy open to half-open
// transition when the window has elapsed.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	if b.state == CircuitOpen && time.Since(b.lastStateChange) >= b.openTimeout {
		b.transition(CircuitHalfOpen)
		snap := b.snapshot()
		b.mu.Unlock()
		b.notify(snap)
		return CircuitHalfOpen
	}
	s := b.state
	b.mu.Unlock()
	return s
}

// Restore rehydrates the breaker from a persisted snapshot, typically at
// startup. An open window that already expired comes back as half-open on
// the next Allow.
func (b *Breaker) Restore(rec *domain.CircuitStateRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = parseCircuitState(rec.State)
	b.failures = rec.Failures
	b.probing = false
	if b.state == CircuitOpen && rec.OpenedUntil != nil {
		b.lastStateChange = rec.OpenedUntil.Add(-b.openTimeout)
	} else {
		b.lastStateChange = time.Now()
	}
}

// Snapshot returns a persistable view of the breaker.
func (b *Breaker) Snapshot() domain.CircuitStateRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// snapshot must be called with the lock held.
func (b *Breaker) snapshot() domain.CircuitStateRecord {
	rec := domain.CircuitStateRecord{
		Name:     b.Name,
		State:    b.state.String(),
		Failures: b.failures,
	}
	if b.state == CircuitOpen {
		until := b.lastStateChange.Add(b.openTimeout).UTC()
		rec.OpenedUntil = &until
	}
	return rec
}

// transition must be called with the lock held.
func (b *Breaker) transition(to CircuitState) {
	b.state = to
	b.probing = false
	b.lastStateChange = time.Now()
}

func (b *Breaker) notify(rec domain.CircuitStateRecord) {
	if b.StateChanged != nil {
		b.StateChanged(rec)
	}
}
