package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{MaxAttempts: 5}, func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Backoff:     func(i int) time.Duration { return time.Millisecond },
	}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsFinalError(t *testing.T) {
	attempt := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (int, error) {
		attempt++
		return 0, fmt.Errorf("attempt %d", attempt)
	})

	// The last attempt's error must win, not an earlier one.
	require.Error(t, err)
	assert.Equal(t, "attempt 3", err.Error())
	assert.Equal(t, 3, attempt)
}

func TestDo_ShortCircuitStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts:  5,
		ShortCircuit: func(err error) bool { return errors.Is(err, errBoom) },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return false },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffSchedule(t *testing.T) {
	var delays []int
	_, err := Do(context.Background(), Policy{
		MaxAttempts: 4,
		Backoff: func(i int) time.Duration {
			delays = append(delays, i)
			return 0
		},
	}, func(ctx context.Context) (int, error) {
		return 0, errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	// Backoff is consulted after every failed attempt except the last.
	assert.Equal(t, []int{0, 1, 2}, delays)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = Do(ctx, Policy{
			MaxAttempts: 5,
			Backoff:     func(i int) time.Duration { return time.Minute },
		}, func(ctx context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}
