package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

var (
	// ErrRateLimit indicates that a provider rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Backoff computes the sleep before the next attempt. Attempt is 1-based:
// the delay grows by the multiplier per attempt, caps at MaxDelay, then gets
// randomized by up to ±JitterFraction. Roll must be in [0, 1); 0.5 lands on
// the exact delay.
func Backoff(policy service.RetryPolicy, attempt int, roll float64) time.Duration {
	delay := float64(policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= policy.Multiplier
	}
	if capped := float64(policy.MaxDelay); delay > capped {
		delay = capped
	}
	jitter := delay * policy.JitterFraction * (2*roll - 1)
	return time.Duration(delay + jitter)
}

// WithRetry executes an operation with configurable retry behavior. Only
// retryable errors trigger another attempt; everything else returns
// immediately.
func WithRetry(ctx context.Context, operation func() error, policy service.RetryPolicy) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 8 * time.Second
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if attempt == policy.MaxAttempts {
			// Keep the last error in the chain: callers classify the
			// failure kind from it after exhaustion.
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, policy.MaxAttempts, err)
		}

		delay := Backoff(policy, attempt, rand.Float64())

		// Rate limits get the full backoff window regardless of attempt
		if errors.Is(err, ErrRateLimit) {
			delay = policy.MaxDelay
		}

		slog.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return err
}
