package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicy(t *testing.T) {
	t.Parallel()
	p := NewExponentialRetryPolicy()
	err := errors.New("connection reset")

	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(err, 1))
	require.True(t, p.ShouldRetry(err, 2))
	require.False(t, p.ShouldRetry(err, 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))

	// An attempt that ran out its own navigation deadline retries.
	require.True(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("navigate x: %w", context.DeadlineExceeded), 2))
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()
	p := NewExponentialRetryPolicy()

	for attempt := 0; attempt < 8; attempt++ {
		delay := p.Backoff(attempt)
		require.Positive(t, delay)
		require.LessOrEqual(t, delay, p.maxDelay)
	}
	// Later attempts never back off less than the first's floor.
	require.GreaterOrEqual(t, p.Backoff(6), p.Backoff(0)/2)
}

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()
	p := FixedRetryPolicy{Attempts: 3, Delay: 2 * time.Second}
	err := errors.New("navigation timeout")

	require.True(t, p.ShouldRetry(err, 1))
	require.True(t, p.ShouldRetry(err, 2))
	require.False(t, p.ShouldRetry(err, 3))
	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.True(t, p.ShouldRetry(fmt.Errorf("navigate x: %w", context.DeadlineExceeded), 1))
	require.Equal(t, 2*time.Second, p.Backoff(0))
	require.Equal(t, 2*time.Second, p.Backoff(5))
}
