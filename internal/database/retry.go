package database

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds how the driver retries transaction-boundary
// statements (BEGIN IMMEDIATE, COMMIT) that fail with a Busy error.
// It is a small policy object rather than hard-coded constants so
// tests can substitute a short-wait policy (internal/testutil uses a
// 1ms one) or, inside this package, a zero-wait one via sleep.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration

	// sleep is overridable in tests to avoid real waits.
	sleep func(time.Duration)
}

// DefaultRetryPolicy matches spec.md §5: up to 50 attempts, uniform
// random back-off in [50ms, 500ms].
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 50,
		MinBackoff:  50 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// NewRetryPolicy builds a RetryPolicy with the given bounds. Tests
// outside this package use it to build a policy with a tiny MaxBackoff
// instead of reaching for the default 50-500ms window.
func NewRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, MinBackoff: minBackoff, MaxBackoff: maxBackoff}
}

func (p RetryPolicy) backoff() time.Duration {
	lo, hi := p.MinBackoff, p.MaxBackoff
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func (p RetryPolicy) wait(d time.Duration) {
	if p.sleep != nil {
		p.sleep(d)
		return
	}
	time.Sleep(d)
}

// Do runs fn up to MaxAttempts times, retrying only when fn returns an
// error classified as KindBusy by IsBusy. Any other error, or
// success, returns immediately. Exhausting the attempt budget returns
// store.ErrDatabaseBusy wrapping the last underlying error.
func (p RetryPolicy) Do(fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsBusy(lastErr) {
			return lastErr
		}
		if attempt < attempts-1 {
			p.wait(p.backoff())
		}
	}
	return busyExhaustedError(lastErr)
}
