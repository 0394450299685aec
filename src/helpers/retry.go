package helpers

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// Backoff tracks exponential backoff state with a capped attempt count.
// Used by the refresh loop to pace retries after upstream outages; each
// success resets progress.
type Backoff struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	attempt     int
}

// -----------------------------------------------------------------------------

func NewBackoff(baseDelay, maxDelay time.Duration, maxAttempts int) *Backoff {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Backoff{
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		MaxAttempts: maxAttempts,
	}
}

// -----------------------------------------------------------------------------

// Next returns the delay before the next attempt, or false once the
// attempt budget is spent.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.MaxAttempts > 0 && b.attempt >= b.MaxAttempts {
		return 0, false
	}
	delay := b.BaseDelay * (1 << b.attempt)
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	b.attempt++
	return delay, true
}

// -----------------------------------------------------------------------------

// Reset clears progress after a successful attempt.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// -----------------------------------------------------------------------------

// RetryWithBackoff executes fn up to maxRetries times with exponential
// backoff, honoring context cancellation between attempts.
func RetryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
