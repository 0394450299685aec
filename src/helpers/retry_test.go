package helpers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second, 0)

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second, // capped
		5 * time.Second,
	}
	for i, want := range expected {
		delay, ok := b.Next()
		require.True(t, ok, "attempt %d", i)
		assert.Equal(t, want, delay, "attempt %d", i)
	}
}

// -----------------------------------------------------------------------------

func TestBackoffExhaustsAttemptBudget(t *testing.T) {
	b := NewBackoff(time.Millisecond, time.Second, 3)

	for i := 0; i < 3; i++ {
		_, ok := b.Next()
		require.True(t, ok, "attempt %d", i)
	}

	_, ok := b.Next()
	assert.False(t, ok, "budget of 3 is spent")
}

// -----------------------------------------------------------------------------

func TestBackoffResetRestartsProgress(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute, 0)

	b.Next()
	b.Next()
	b.Reset()

	delay, ok := b.Next()
	require.True(t, ok)
	assert.Equal(t, time.Second, delay)
}

// -----------------------------------------------------------------------------

func TestBackoffZeroValuesGetDefaults(t *testing.T) {
	b := NewBackoff(0, 0, 0)
	assert.Equal(t, time.Second, b.BaseDelay)
	assert.Equal(t, 30*time.Second, b.MaxDelay)
}

// -----------------------------------------------------------------------------

func TestRetryWithBackoffStopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// -----------------------------------------------------------------------------

func TestRetryWithBackoffReturnsLastError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("still broken")
	})

	require.Error(t, err)
	assert.Equal(t, "still broken", err.Error())
	assert.Equal(t, 3, calls)
}

// -----------------------------------------------------------------------------

func TestRetryWithBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, 5, time.Hour, func() error {
		calls++
		return errors.New("transient")
	})

	// The first attempt runs, then the cancelled context aborts the wait
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
