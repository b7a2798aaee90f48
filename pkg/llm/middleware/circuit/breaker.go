// Package circuit stops calling an llm backend that keeps failing until a cooldown has passed.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State is the breaker position.
type State int

// Breaker states.
const (
	Closed   State = iota // normal operation
	Open                  // failing, reject requests
	HalfOpen              // trial requests after the cooldown
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes the breaker. A FailureThreshold of zero disables it.
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures that open the circuit
	SuccessThreshold int           `json:"success_threshold"` // half-open successes that close it again
	Cooldown         time.Duration `json:"cooldown"`          // time spent open before a trial request
}

// Enabled reports whether the breaker should be installed.
func (c Config) Enabled() bool { return c.FailureThreshold > 0 }

// DefaultConfig trips after five failed calls and allows a trial call after half a minute.
//
//nolint:gochecknoglobals // package defaults
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Cooldown:         30 * time.Second,
}

// OpenError is the cause attached to calls rejected while the circuit is open.
type OpenError struct {
	Model string
	State State
	Until time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %s is %s until %s", e.Model, e.State, e.Until.Format(time.RFC3339))
}

// Breaker tracks call outcomes for one backend.
//
//nolint:govet // fieldalignment: grouped by concern
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	state  State
	failed int
	passed int
	opened time.Time
}

// New returns a closed breaker.
func New(cfg Config) *Breaker {
	return newBreaker(cfg, time.Now)
}

func newBreaker(cfg Config, now func() time.Time) *Breaker {
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{cfg: cfg, now: now}
}

// Allow reports whether a call may proceed. An open breaker moves to half-open once the
// cooldown has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.opened) >= b.cfg.Cooldown {
			b.state = HalfOpen
			b.passed = 0
			return true
		}
		return false
	default:
		return false
	}
}

// Record counts the outcome of a call that Allow let through.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case Closed:
			b.failed = 0
		case HalfOpen:
			b.passed++
			if b.passed >= b.cfg.SuccessThreshold {
				b.state = Closed
				b.failed = 0
				b.passed = 0
			}
		case Open:
		}
		return
	}

	b.failed++
	switch b.state {
	case Closed:
		if b.failed >= b.cfg.FailureThreshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	case Open:
	}
}

// trip must be called with mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.passed = 0
	b.opened = b.now()
}

// State returns the current position without advancing an expired cooldown.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ReopensAt is when an open breaker will let the next trial call through.
func (b *Breaker) ReopensAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened.Add(b.cfg.Cooldown)
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failed = 0
	b.passed = 0
}
