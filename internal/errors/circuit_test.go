package errors

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := NewBreaker("docs/broken.md")

	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_PassesThroughOperationError(t *testing.T) {
	// Given: a closed breaker and a failing operation
	b := NewBreaker("docs/broken.md", WithFailureLimit(3))
	errParse := errors.New("unbalanced delimiters")

	// When: the operation fails under the breaker
	err := b.Execute(func() error { return errParse })

	// Then: the caller sees the operation's own error, and it counts
	assert.True(t, errors.Is(err, errParse))
	assert.Equal(t, 1, b.Failures())
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensAfterFailureLimit(t *testing.T) {
	// Given: a breaker that tolerates three failures
	b := NewBreaker("docs/broken.md", WithFailureLimit(3))
	failing := func() error { return errors.New("analysis failed") }

	// When: the operation fails three times in a row
	for i := 0; i < 3; i++ {
		err := b.Execute(failing)
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrBreakerOpen), "failure %d should reach the operation", i+1)
	}

	// Then: the breaker is open, stops calling the operation, and names
	// the guarded document in its error
	assert.Equal(t, BreakerOpen, b.State())

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	assert.True(t, errors.Is(err, ErrBreakerOpen))
	assert.Contains(t, err.Error(), "docs/broken.md")
	assert.Equal(t, 0, calls, "open breaker must not run the operation")
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	// Given: a breaker partway to opening
	b := NewBreaker("docs/flaky.md", WithFailureLimit(3))
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	require.Equal(t, 2, b.Failures())

	// When: an operation succeeds
	require.NoError(t, b.Execute(func() error { return nil }))

	// Then: the count starts over
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	// Given: an open breaker with a short cooldown
	b := NewBreaker("docs/broken.md",
		WithFailureLimit(2),
		WithCooldown(50*time.Millisecond))
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	require.Equal(t, BreakerOpen, b.State())

	// When: the cooldown passes
	time.Sleep(80 * time.Millisecond)

	// Then: the breaker offers a probe
	assert.Equal(t, BreakerHalfOpen, b.State())
}

func TestBreaker_SuccessfulProbeCloses(t *testing.T) {
	// Given: a breaker past its cooldown
	b := NewBreaker("docs/fixed.md",
		WithFailureLimit(2),
		WithCooldown(30*time.Millisecond))
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, BreakerHalfOpen, b.State())

	// When: the probe succeeds
	err := b.Execute(func() error { return nil })

	// Then: the breaker closes and forgets the failures
	assert.NoError(t, err)
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Failures())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	// Given: a breaker past its cooldown
	b := NewBreaker("docs/still-broken.md",
		WithFailureLimit(2),
		WithCooldown(30*time.Millisecond))
	_ = b.Execute(func() error { return errors.New("boom") })
	_ = b.Execute(func() error { return errors.New("boom") })
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, BreakerHalfOpen, b.State())

	// When: the probe fails too
	err := b.Execute(func() error { return errors.New("still boom") })

	// Then: the breaker opens again and blocks the next call
	assert.Error(t, err)
	assert.Equal(t, BreakerOpen, b.State())
	assert.True(t, errors.Is(b.Execute(func() error { return nil }), ErrBreakerOpen))
}

func TestBreaker_DefaultLimit(t *testing.T) {
	// Given: a breaker with default options
	b := NewBreaker("docs/default.md")
	failing := func() error { return errors.New("boom") }

	// When: failing one short of the default limit
	for i := 1; i < 5; i++ {
		_ = b.Execute(failing)
	}

	// Then: still closed, and the fifth failure opens it
	assert.Equal(t, BreakerClosed, b.State())
	_ = b.Execute(failing)
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_ConcurrentExecutes(t *testing.T) {
	// Given: one breaker shared by many goroutines
	b := NewBreaker("docs/shared.md", WithFailureLimit(100))

	// When: running mixed successes and failures concurrently
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Execute(func() error {
				if i%2 == 1 {
					return errors.New("boom")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	// Then: the breaker stays closed under a high threshold
	assert.Equal(t, BreakerClosed, b.State())
	assert.LessOrEqual(t, b.Failures(), 10)
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(99).String())
}
