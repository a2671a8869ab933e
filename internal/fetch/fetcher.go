// Package fetch renders listing pages in headless Chrome with retries
// and mandatory pacing between page loads.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config controls the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// PaceDelay is the minimum gap between page navigations. Pacing is
	// enforced inside the fetcher so no caller can forget it.
	PaceDelay time.Duration
	MaxTabs   int
}

// SettleFunc inspects the page as first rendered and returns how much
// longer to let it settle before the final snapshot. Client-rendered
// pages need more time than static ones, and only the body says which
// kind this is.
type SettleFunc func(body []byte) time.Duration

// Page is a rendered page snapshot.
type Page struct {
	URL      string
	FinalURL string
	Body     []byte
	Attempts int
}

// Fetcher drives a shared headless Chrome process. Each fetch rents a
// fresh tab; MaxTabs bounds how many are open at once.
type Fetcher struct {
	cfg         Config
	policy      RetryPolicy
	limiter     chan struct{}
	pacer       *rate.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger

	// navigate performs one paced page load. Indirection over fetchOnce
	// so the retry loop can be driven without a browser in tests.
	navigate func(ctx context.Context, url string, settle SettleFunc) (Page, error)
}

// New builds a Fetcher backed by one browser process.
func New(cfg Config, policy RetryPolicy, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxTabs < 0 {
		return nil, fmt.Errorf("max tabs must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if policy == nil {
		policy = FixedRetryPolicy{Attempts: 3, Delay: 2 * time.Second}
	}
	var limiter chan struct{}
	if cfg.MaxTabs > 0 {
		limiter = make(chan struct{}, cfg.MaxTabs)
	}
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.PaceDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.PaceDelay), 1)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	f := &Fetcher{
		cfg:         cfg,
		policy:      policy,
		limiter:     limiter,
		pacer:       pacer,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
	f.navigate = f.fetchOnce
	return f, nil
}

// Close shuts the browser allocator down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Render loads a URL and returns its source after a fixed settle wait.
// Sitemap fetches use this path; they need no classification.
func (f *Fetcher) Render(ctx context.Context, url string, settle time.Duration) ([]byte, error) {
	page, err := f.navigate(ctx, url, func([]byte) time.Duration { return settle })
	if err != nil {
		return nil, err
	}
	return page.Body, nil
}

// Fetch loads a listing page with retries. The settle callback sees
// the initial render and picks the extra wait; the final snapshot is
// taken in the same tab afterward. An attempt that ran out its
// navigation deadline is retried like any other failure; only the
// caller's context ending stops the loop early.
func (f *Fetcher) Fetch(ctx context.Context, url string, settle SettleFunc) (Page, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		page, err := f.navigate(ctx, url, settle)
		if err == nil {
			page.Attempts = attempt + 1
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !f.policy.ShouldRetry(err, attempt+1) {
			break
		}
		wait := f.policy.Backoff(attempt)
		FetchRetries.Inc()
		f.logger.Debug("fetch retry",
			zap.String("url", url), zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return Page{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return Page{}, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, settle SettleFunc) (Page, error) {
	if err := f.pacer.Wait(ctx); err != nil {
		return Page{}, fmt.Errorf("pacing wait canceled: %w", err)
	}
	if err := f.acquire(ctx); err != nil {
		return Page{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	var initial, finalURL string
	if err := chromedp.Run(taskCtx,
		f.networkSetup(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &initial, chromedp.ByQuery),
	); err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	body := initial
	if settle != nil {
		if extra := settle([]byte(initial)); extra > 0 {
			if err := chromedp.Run(taskCtx,
				chromedp.Sleep(extra),
				chromedp.OuterHTML("html", &body, chromedp.ByQuery),
			); err != nil {
				return Page{}, fmt.Errorf("settle %s: %w", url, err)
			}
		}
	}
	return Page{URL: url, FinalURL: finalURL, Body: []byte(body)}, nil
}

func (f *Fetcher) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tab slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}
