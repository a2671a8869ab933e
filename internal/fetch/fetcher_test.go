package fetch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxTabs: -1}, nil, zap.NewNop())
	require.Error(t, err)

	f, err := New(Config{MaxTabs: 2}, nil, zap.NewNop())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 2, cap(f.limiter))
	require.Equal(t, 45*time.Second, f.cfg.NavigationTimeout)
}

func TestNew_PacerFromDelay(t *testing.T) {
	t.Parallel()

	f, err := New(Config{PaceDelay: 2500 * time.Millisecond}, nil, zap.NewNop())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, rate.Every(2500*time.Millisecond), f.pacer.Limit())

	// No delay configured means the pacer never blocks.
	unpaced, err := New(Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	defer unpaced.Close()
	require.Equal(t, rate.Inf, unpaced.pacer.Limit())
}

func TestNew_DefaultPolicy(t *testing.T) {
	t.Parallel()

	f, err := New(Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	defer f.Close()

	policy, ok := f.policy.(FixedRetryPolicy)
	require.True(t, ok)
	require.Equal(t, 3, policy.Attempts)
}

// newLoopFetcher builds a Fetcher whose navigation step is replaced,
// so the retry loop runs without a browser.
func newLoopFetcher(t *testing.T, policy RetryPolicy, navigate func(context.Context, string, SettleFunc) (Page, error)) *Fetcher {
	t.Helper()
	f, err := New(Config{}, policy, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(f.Close)
	f.navigate = navigate
	return f
}

func TestFetch_NavigationTimeoutRetriedToExhaustion(t *testing.T) {
	t.Parallel()
	url := "https://bringatrailer.com/listing/1972-datsun-240z-45/"

	var calls int
	f := newLoopFetcher(t, FixedRetryPolicy{Attempts: 3, Delay: time.Millisecond},
		func(_ context.Context, u string, _ SettleFunc) (Page, error) {
			calls++
			return Page{}, fmt.Errorf("navigate %s: %w", u, context.DeadlineExceeded)
		})

	_, err := f.Fetch(context.Background(), url, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 3, calls)
}

func TestFetch_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	var calls int
	f := newLoopFetcher(t, FixedRetryPolicy{Attempts: 3, Delay: time.Millisecond},
		func(_ context.Context, u string, _ SettleFunc) (Page, error) {
			calls++
			if calls < 3 {
				return Page{}, fmt.Errorf("navigate %s: %w", u, context.DeadlineExceeded)
			}
			return Page{URL: u, Body: []byte("<html></html>")}, nil
		})

	page, err := f.Fetch(context.Background(), "https://example.com/listing/x/", nil)
	require.NoError(t, err)
	require.Equal(t, 3, page.Attempts)
	require.Equal(t, 3, calls)
}

func TestFetch_CanceledRunStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	f := newLoopFetcher(t, FixedRetryPolicy{Attempts: 3, Delay: time.Millisecond},
		func(_ context.Context, u string, _ SettleFunc) (Page, error) {
			calls++
			cancel()
			return Page{}, fmt.Errorf("navigate %s: %w", u, context.Canceled)
		})

	_, err := f.Fetch(ctx, "https://example.com/listing/x/", nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
