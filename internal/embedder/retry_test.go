package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func alwaysRetryable(error) bool { return true }

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := retryWithBackoff(context.Background(), fastRetryConfig(), alwaysRetryable, func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := retryWithBackoff(context.Background(), fastRetryConfig(), alwaysRetryable, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("still down")
	_, err := retryWithBackoff(context.Background(), fastRetryConfig(), alwaysRetryable, func() (int, error) {
		calls++
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StructuralErrorNotRetried(t *testing.T) {
	calls := 0
	structural := errors.New("bad request")
	_, err := retryWithBackoff(context.Background(), fastRetryConfig(), func(error) bool { return false }, func() (int, error) {
		calls++
		return 0, structural
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, structural)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryWithBackoff(ctx, fastRetryConfig(), alwaysRetryable, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
