package resilience

import (
	"context"
	"time"
)

// RetryPolicy defines retry behavior for transient failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Allows reports whether attempt (1-based count of retries already made)
// is still within budget.
func (r RetryPolicy) Allows(attempt int) bool {
	return attempt <= r.MaxRetries
}

// Wait sleeps for the backoff of the given retry attempt (linear growth),
// returning early with ctx.Err() if ctx is cancelled.
func (r RetryPolicy) Wait(ctx context.Context, attempt int) error {
	if attempt < 1 {
		attempt = 1
	}
	t := time.NewTimer(r.Backoff * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
