package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(retry int, _ error) { retried = append(retried, retry) }

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "always fails")
	assert.Equal(t, 3, calls)
}

func TestDo_SingleAttemptNeverRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(1), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("busy"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return errors.New("unique constraint violated")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastRetry(5), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryConfig_WaitDoublesAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}.normalized()
	for range 50 {
		first := cfg.wait(0)
		assert.GreaterOrEqual(t, first, 50*time.Millisecond)
		assert.LessOrEqual(t, first, 100*time.Millisecond)

		second := cfg.wait(1)
		assert.GreaterOrEqual(t, second, 100*time.Millisecond)
		assert.LessOrEqual(t, second, 200*time.Millisecond)

		capped := cfg.wait(20)
		assert.GreaterOrEqual(t, capped, 500*time.Millisecond)
		assert.LessOrEqual(t, capped, time.Second)
	}
}

func TestRetryConfig_NormalizedRaisesCapToInitial(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 10 * time.Second}.normalized()
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(0, 0)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)

	cfg = FromRetryConfig(7, 250)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
}
