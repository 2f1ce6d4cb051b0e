// Package retry provides a small bounded-retry combinator for operations
// against devices that are unstable immediately after session setup.
//
// The combinator separates the retry mechanics (attempt bound, backoff
// schedule, cancellation) from the policy that decides which failures are
// worth retrying and which should end the loop immediately.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Backoff returns the delay to wait after the failed attempt with the
	// given 0-based index. A nil Backoff retries without delay.
	Backoff func(attempt int) time.Duration

	// Retryable reports whether the error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(err error) bool

	// ShortCircuit reports whether the error should end the loop
	// immediately, before Retryable is consulted. The error is returned
	// to the caller unchanged so it can be recognized there.
	ShortCircuit func(err error) bool
}

// Do runs fn until it succeeds, the policy gives up, or ctx is cancelled.
//
// On failure of the final allowed attempt the last error is returned with
// no further wait. Backoff sleeps honor ctx; if ctx is cancelled during a
// wait, ctx.Err() is returned.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.ShortCircuit != nil && policy.ShortCircuit(err) {
			return zero, err
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}

		if policy.Backoff != nil {
			if delay := policy.Backoff(i); delay > 0 {
				if err := sleep(ctx, delay); err != nil {
					return zero, err
				}
			}
		}
	}

	return zero, lastErr
}

// sleep blocks for the given duration or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
