package embedder

import (
	"context"
	"time"
)

// Retry configuration defaults.
const (
	MaxAttempts       = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Initial delay between attempts
	MaxDelay    time.Duration // Maximum delay between attempts
	Multiplier  float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns sensible defaults for API retry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: MaxAttempts,
		BaseDelay:   time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:    time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier:  BackoffMultiplier,
	}
}

// retryWithBackoff executes fn with exponential backoff. Only errors for
// which retryable returns true are retried; structural errors surface
// immediately, as does context cancellation.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
