package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker rejects operations.
var ErrBreakerOpen = errors.New("circuit breaker open")

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed allows operations through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects operations until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets one probe operation test for recovery.
	BreakerHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	names := [...]string{BreakerClosed: "closed", BreakerOpen: "open", BreakerHalfOpen: "half-open"}
	if s < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// Breaker fails fast for an operation that keeps failing, e.g. a
// watched document that cannot be analyzed on any change event. After
// failureLimit consecutive failures the breaker opens; once the cooldown
// passes, a probe operation is allowed through and its outcome decides
// whether the breaker closes again.
type Breaker struct {
	name string

	failureLimit int
	cooldown     time.Duration

	mu       sync.RWMutex
	state    BreakerState
	failures int
	failedAt time.Time
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithFailureLimit sets the consecutive failures before the breaker opens.
func WithFailureLimit(n int) BreakerOption {
	return func(b *Breaker) {
		b.failureLimit = n
	}
}

// WithCooldown sets how long an open breaker waits before a probe is allowed.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		b.cooldown = d
	}
}

// NewBreaker creates a breaker named for the operation it guards.
// Defaults: 5 failures, 30 second cooldown.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{name: name, failureLimit: 5, cooldown: 30 * time.Second}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state, reporting half-open once an open
// breaker's cooldown has passed.
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState()
}

// currentState must be called with at least a read lock held.
func (b *Breaker) currentState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.failedAt) > b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.failures
}

// Execute runs fn through the breaker. While open it returns an error
// wrapping ErrBreakerOpen without calling fn; fn's own error passes
// through otherwise.
func (b *Breaker) Execute(fn func() error) error {
	if !b.beginAttempt() {
		return fmt.Errorf("%w: %s", ErrBreakerOpen, b.name)
	}
	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// beginAttempt reports whether an operation may proceed, committing the
// transition to half-open when the cooldown has passed.
func (b *Breaker) beginAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		b.state = BreakerHalfOpen
		return true
	default:
		return true
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = BreakerClosed
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.failedAt = time.Now()
	if b.failures >= b.failureLimit {
		b.state = BreakerOpen
	}
}
