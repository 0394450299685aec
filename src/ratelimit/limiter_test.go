package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon-observer/src/models"
)

func testLimiter(windowSeconds, limit int) (*Limiter, *time.Time) {
	l := NewLimiter([]models.MRateLimitConfig{
		{SourceID: "coingecko", WindowSeconds: windowSeconds, Limit: limit},
	})
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

// -----------------------------------------------------------------------------

func TestTryAcquireDeniesBeyondLimit(t *testing.T) {
	l, _ := testLimiter(60, 3)

	for i := 0; i < 3; i++ {
		allowed, _ := l.TryAcquire("coingecko")
		require.True(t, allowed, "call %d should be within budget", i+1)
	}

	allowed, resetAt := l.TryAcquire("coingecko")
	assert.False(t, allowed)
	assert.False(t, resetAt.IsZero())
}

// -----------------------------------------------------------------------------

func TestWindowResetsAfterDuration(t *testing.T) {
	l, now := testLimiter(60, 1)

	allowed, _ := l.TryAcquire("coingecko")
	require.True(t, allowed)

	allowed, _ = l.TryAcquire("coingecko")
	require.False(t, allowed)

	// Advance past the window; the next acquire resets before evaluating
	*now = now.Add(61 * time.Second)

	allowed, _ = l.TryAcquire("coingecko")
	assert.True(t, allowed)

	win := l.Window("coingecko")
	assert.Equal(t, 1, win.Count)
}

// -----------------------------------------------------------------------------

func TestCountNeverExceedsLimitUnderConcurrency(t *testing.T) {
	l, _ := testLimiter(60, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.TryAcquire("coingecko"); allowed {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
	assert.Equal(t, 10, l.Window("coingecko").Count)
}

// -----------------------------------------------------------------------------

func TestUnknownSourceGetsDefaults(t *testing.T) {
	l := NewLimiter(nil)

	allowed, _ := l.TryAcquire("mystery")
	assert.True(t, allowed)
	assert.Equal(t, defaultLimit, l.Window("mystery").Limit)
}

// -----------------------------------------------------------------------------

func TestResetClearsWindows(t *testing.T) {
	l, _ := testLimiter(60, 1)

	allowed, _ := l.TryAcquire("coingecko")
	require.True(t, allowed)
	allowed, _ = l.TryAcquire("coingecko")
	require.False(t, allowed)

	l.Reset()

	allowed, _ = l.TryAcquire("coingecko")
	assert.True(t, allowed)
}
