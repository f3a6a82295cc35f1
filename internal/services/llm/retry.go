package llm

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy retries an operation with bounded attempts and a fixed
// inter-attempt delay. Fixed rather than exponential on purpose: the
// provider failures seen here are transient and short-lived, and the
// simpler policy is easier to reason about under rate limits.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// DefaultRetryPolicy matches the provider retry behavior used across the
// pipeline: up to 10 attempts, 100ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Delay:       100 * time.Millisecond,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error is returned once attempts run out.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}
