package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

func testPolicy() service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func TestBackoff(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		name    string
		attempt int
		roll    float64
		want    time.Duration
	}{
		{name: "first attempt midpoint", attempt: 1, roll: 0.5, want: 500 * time.Millisecond},
		{name: "second attempt doubles", attempt: 2, roll: 0.5, want: 1 * time.Second},
		{name: "third attempt doubles again", attempt: 3, roll: 0.5, want: 2 * time.Second},
		{name: "cap reached", attempt: 5, roll: 0.5, want: 8 * time.Second},
		{name: "cap holds past the cap", attempt: 10, roll: 0.5, want: 8 * time.Second},
		{name: "low roll shrinks the delay", attempt: 1, roll: 0, want: 375 * time.Millisecond},
		{name: "high roll grows the delay", attempt: 1, roll: 0.75, want: 562500 * time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(policy, tt.attempt, tt.roll); got != tt.want {
				t.Errorf("Backoff(attempt=%d, roll=%v) = %v, want %v", tt.attempt, tt.roll, got, tt.want)
			}
		})
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	policy := testPolicy()

	low := time.Duration(float64(policy.BaseDelay) * (1 - policy.JitterFraction))
	high := time.Duration(float64(policy.BaseDelay) * (1 + policy.JitterFraction))

	for _, roll := range []float64{0, 0.25, 0.5, 0.999} {
		got := Backoff(policy, 1, roll)
		if got < low {
			t.Errorf("roll %v: delay %v below jitter floor %v", roll, got, low)
		}
		if got > high {
			t.Errorf("roll %v: delay %v above jitter ceiling %v", roll, got, high)
		}
	}
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, testPolicy())
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	policy := service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("connection reset"), Retryable: true}
		}
		return nil
	}, policy)
	if err != nil {
		t.Fatalf("WithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_NonRetryableReturnsImmediately(t *testing.T) {
	parseErr := ErrExtractionParse

	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return parseErr
	}, testPolicy())
	if !errors.Is(err, ErrExtractionParse) {
		t.Fatalf("WithRetry() error = %v, want %v", err, ErrExtractionParse)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	policy := service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

	underlying := errors.New("still down")
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: underlying, Retryable: true}
	}, policy)
	if !errors.Is(err, ErrMaxRetries) {
		t.Fatalf("WithRetry() error = %v, want ErrMaxRetries", err)
	}
	// The last failure stays in the chain for kind classification.
	if !errors.Is(err, underlying) {
		t.Errorf("WithRetry() error %v lost the underlying cause", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := service.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return &RetryableError{Err: errors.New("flaky"), Retryable: true}
	}, policy)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WithRetry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
