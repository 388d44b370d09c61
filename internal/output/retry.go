package output

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetryExhausted is wrapped by every RetryError.
var ErrRetryExhausted = errors.New("retries exhausted")

// RetryError reports an operation that failed on every attempt.
type RetryError struct {
	Op       string
	Attempts int
	Err      error // last failure
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", e.Op, ErrRetryExhausted, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error { return []error{ErrRetryExhausted, e.Err} }

// RetryPolicy bounds how often a flaky write is repeated.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Backoff multiplies Delay after each failed attempt; values < 1 mean constant delay.
	Backoff float64
}

// DefaultRetryPolicy is used when a sink is given the zero policy.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: 2}

// Do runs fn until it succeeds, the attempts run out or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			Logger.Info("Retrying...", "op", op, "attempt", i+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(delay):
			}
			if p.Backoff > 1 {
				delay = time.Duration(float64(delay) * p.Backoff)
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return &RetryError{Op: op, Attempts: attempts, Err: lastErr}
}
