package embedder

import (
	"context"
	"time"
)

// withRetries runs fn up to MaxRetries times with exponential backoff
// between attempts. Context cancellation aborts immediately and wins
// over the provider's error.
func withRetries[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoffFor(attempt)):
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffFor returns the delay before the given attempt (1-based for
// delays: attempt 1 waits the initial backoff, each later attempt
// doubles it up to the cap).
func backoffFor(attempt int) time.Duration {
	delay := float64(InitialBackoffMs)
	for i := 1; i < attempt; i++ {
		delay *= BackoffMultiplier
	}
	if delay > float64(MaxBackoffMs) {
		delay = float64(MaxBackoffMs)
	}
	return time.Duration(delay) * time.Millisecond
}
