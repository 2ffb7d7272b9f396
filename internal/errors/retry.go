package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff configures exponential retry delays.
type Backoff struct {
	// Retries is the number of retry attempts after the initial one.
	Retries int

	// BaseDelay is the wait before the first retry. MaxDelay caps the
	// delay as it grows.
	BaseDelay, MaxDelay time.Duration

	// Factor grows the delay after each retry.
	Factor float64

	// Jitter randomizes each delay to avoid lockstep retries.
	Jitter bool
}

// DefaultBackoff returns the general-purpose policy: three retries over
// roughly seven seconds.
func DefaultBackoff() Backoff {
	return Backoff{Retries: 3, BaseDelay: time.Second, MaxDelay: 16 * time.Second, Factor: 2.0}
}

// LockBackoff is tuned for writer-lock contention: short initial delay,
// jitter on so concurrent writers don't reacquire in lockstep.
func LockBackoff() Backoff {
	return Backoff{
		Retries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 2 * time.Second,
		Factor: 2.0, Jitter: true,
	}
}

// ReadBackoff is tuned for transient file reads, e.g. a watched document
// still being saved. Tight enough to keep event handling responsive.
func ReadBackoff() Backoff {
	return Backoff{
		Retries: 2, BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond,
		Factor: 2.0, Jitter: true,
	}
}

// nextWait applies jitter to the current backoff delay.
func (b Backoff) nextWait(delay time.Duration) time.Duration {
	if !b.Jitter {
		return delay
	}
	// delay * (0.5 + rand[0, 0.5))
	return time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
}

// Retry runs fn with exponential backoff until it succeeds, the retries
// are exhausted, or the context is cancelled.
func Retry(ctx context.Context, bo Backoff, fn func() error) error {
	_, err := RetryWithResult(ctx, bo, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value. On failure
// the zero value is returned alongside the final error.
func RetryWithResult[T any](ctx context.Context, bo Backoff, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	delay := bo.BaseDelay

	for attempt := 0; attempt <= bo.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		got, err := fn()
		if err == nil {
			return got, nil
		}
		last = err

		if attempt == bo.Retries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(bo.nextWait(delay)):
		}

		delay = min(time.Duration(float64(delay)*bo.Factor), bo.MaxDelay)
	}

	return zero, fmt.Errorf("failed after %d retries: %w", bo.Retries, last)
}
