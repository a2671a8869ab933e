package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/fetch"
	"github.com/miilabs/auction-harvester/internal/source"
)

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://bringatrailer.com/listing/1972-datsun-240z-45/</loc></url>
  <url><loc>https://bringatrailer.com/listing/1990-mazda-miata-12/</loc></url>
  <url><loc>https://bringatrailer.com/listing/test-page/</loc></url>
  <url><loc>https://bringatrailer.com/about/</loc></url>
  <url><loc>https://bringatrailer.com/listing/1972-datsun-240z-45/</loc></url>
</urlset>`

type fakeRenderer struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string, _ time.Duration) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

func testSource(sitemapURL string) *source.Source {
	s := source.BringATrailer()
	s.SitemapURL = sitemapURL
	return s
}

func TestDiscover_HTTPAndXMLTier(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sitemapXML))
	}))
	defer srv.Close()

	d := New(Config{}, nil, zap.NewNop())
	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Equal(t, MethodHTTP, res.Method)
	require.Equal(t, TierXML, res.ParseTier)

	// Filtered to listing URLs, skip rules applied, duplicates dropped.
	require.Equal(t, []string{
		"https://bringatrailer.com/listing/1972-datsun-240z-45/",
		"https://bringatrailer.com/listing/1990-mazda-miata-12/",
	}, res.URLs)
}

func TestDiscover_BrowserFallbackOnHTTPFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{body: []byte(sitemapXML)}
	d := New(Config{}, renderer, zap.NewNop())
	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Equal(t, MethodBrowser, res.Method)
	require.Equal(t, 1, renderer.calls)
	require.Len(t, res.URLs, 2)
}

func TestDiscover_BrowserRetriesThenEmpty(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{err: errors.New("navigation timeout")}
	d := New(Config{}, renderer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Cancel during the first backoff so the test stays fast.
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := d.Discover(ctx, testSource(srv.URL))
	require.NoError(t, err)
	require.Empty(t, res.URLs)
	require.GreaterOrEqual(t, renderer.calls, 1)
}

func TestDiscover_BrowserExhaustsRetryPolicy(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	renderer := &fakeRenderer{err: errors.New("navigation timeout")}
	d := New(Config{}, renderer, zap.NewNop())
	d.retry = fetch.FixedRetryPolicy{Attempts: 3, Delay: time.Millisecond}

	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Empty(t, res.URLs)
	require.Equal(t, 3, renderer.calls)
}

func TestDiscover_BrowserRendersPageWithoutEntries(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	// A 200 render of a challenge page carries no sitemap entries and
	// is retried like any other failure.
	renderer := &fakeRenderer{body: []byte("<html><body>Checking your browser</body></html>")}
	d := New(Config{}, renderer, zap.NewNop())
	d.retry = fetch.FixedRetryPolicy{Attempts: 2, Delay: time.Millisecond}

	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Empty(t, res.URLs)
	require.Equal(t, 2, renderer.calls)
}

func TestNew_DefaultBrowserRetryPolicy(t *testing.T) {
	t.Parallel()
	d := New(Config{}, nil, zap.NewNop())
	_, ok := d.retry.(*fetch.ExponentialRetryPolicy)
	require.True(t, ok)
}

func TestDiscover_HTMLTierWhenXMLBroken(t *testing.T) {
	t.Parallel()
	// Truncated XML declaration breaks the strict parser tier.
	broken := `<urlset><url><loc>https://bringatrailer.com/listing/1972-datsun-240z-45/</loc><url></urlset`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(broken))
	}))
	defer srv.Close()

	d := New(Config{}, nil, zap.NewNop())
	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Equal(t, []string{"https://bringatrailer.com/listing/1972-datsun-240z-45/"}, res.URLs)
}

func TestDiscover_RegexTier(t *testing.T) {
	t.Parallel()
	page := `<html><body><urlset>visit https://bringatrailer.com/listing/1967-alfa-romeo-giulia-3/ today</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	d := New(Config{}, nil, zap.NewNop())
	res, err := d.Discover(context.Background(), testSource(srv.URL))
	require.NoError(t, err)
	require.Equal(t, TierRegex, res.ParseTier)
	require.Equal(t, []string{"https://bringatrailer.com/listing/1967-alfa-romeo-giulia-3/"}, res.URLs)
}

func TestUnwrapViewer(t *testing.T) {
	t.Parallel()
	wrapped := `<html><body><div id="webkit-xml-viewer-source-xml">` + sitemapXML + `</div></body></html>`
	urls, tier := parse(unwrapViewer([]byte(wrapped)), testSource("unused"))
	require.NotEmpty(t, urls)
	require.Equal(t, TierXML, tier)
}
