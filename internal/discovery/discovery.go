// Package discovery finds candidate listing URLs in a site's auction
// sitemap. The sitemap is fetched over plain HTTP first and through the
// headless browser only when the site refuses the cheap path, then
// parsed through a cascade of strategies from strict XML down to a
// regex sweep of the raw text.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/fetch"
	"github.com/miilabs/auction-harvester/internal/source"
)

// Fetch methods and parse tiers reported in Result, for run logs.
const (
	MethodHTTP    = "http"
	MethodBrowser = "browser"

	TierXML   = "xml"
	TierHTML  = "html"
	TierRegex = "regex"
)

// errNoEntries marks a render that came back without a single sitemap
// entry, usually an interstitial or challenge page.
var errNoEntries = errors.New("document has no sitemap entries")

// Renderer loads a URL in the headless browser and returns the settled
// page source. The settle argument is the extra wait after load.
type Renderer interface {
	Render(ctx context.Context, url string, settle time.Duration) ([]byte, error)
}

// Result is one sitemap discovery outcome.
type Result struct {
	URLs      []string
	Method    string
	ParseTier string
}

// Config controls the HTTP sitemap fetch.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Discoverer fetches and parses auction sitemaps.
type Discoverer struct {
	cfg       Config
	collector *colly.Collector
	renderer  Renderer
	retry     fetch.RetryPolicy
	logger    *zap.Logger
}

// New builds a Discoverer. The renderer may be nil, in which case the
// browser fallback is skipped.
func New(cfg Config, renderer Renderer, logger *zap.Logger) *Discoverer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Discoverer{
		cfg:       cfg,
		collector: c,
		renderer:  renderer,
		retry:     fetch.NewExponentialRetryPolicy(),
		logger:    logger,
	}
}

// Discover returns the filtered listing URLs from the source's
// sitemap. Every fetch and parse strategy failing yields an empty
// result, not an error; the caller decides whether an empty sitemap
// aborts the run.
func (d *Discoverer) Discover(ctx context.Context, src *source.Source) (Result, error) {
	body, method := d.fetch(ctx, src.SitemapURL)
	if len(body) == 0 {
		d.logger.Warn("sitemap unreachable", zap.String("source", src.Name), zap.String("url", src.SitemapURL))
		return Result{}, nil
	}

	urls, tier := parse(unwrapViewer(body), src)
	filtered := filter(urls, src)
	d.logger.Info("sitemap discovered",
		zap.String("source", src.Name),
		zap.String("method", method),
		zap.String("parse_tier", tier),
		zap.Int("raw", len(urls)),
		zap.Int("kept", len(filtered)),
	)
	return Result{URLs: filtered, Method: method, ParseTier: tier}, nil
}

// fetch tries plain HTTP, then the browser with backed-off retries.
func (d *Discoverer) fetch(ctx context.Context, url string) ([]byte, string) {
	body, err := d.fetchHTTP(ctx, url)
	if err == nil && looksLikeSitemap(body) {
		return body, MethodHTTP
	}
	if err != nil {
		d.logger.Debug("sitemap http fetch failed", zap.String("url", url), zap.Error(err))
	}
	if d.renderer == nil {
		return nil, ""
	}

	for attempt := 0; ; attempt++ {
		body, err = d.renderer.Render(ctx, url, time.Duration(attempt+1)*time.Second)
		if err == nil {
			if looksLikeSitemap(unwrapViewer(body)) {
				return body, MethodBrowser
			}
			err = errNoEntries
		}
		d.logger.Debug("sitemap browser fetch failed",
			zap.String("url", url), zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil || !d.retry.ShouldRetry(err, attempt+1) {
			return nil, ""
		}
		select {
		case <-ctx.Done():
			return nil, ""
		case <-time.After(d.retry.Backoff(attempt)):
		}
	}
}

func (d *Discoverer) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := d.collector.Clone()
	collector.SetRequestTimeout(d.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sitemap fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("sitemap visit failed: %w", err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("sitemap response failed: %w", fetchErr)
	}
	if status != 0 && status != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", status)
	}
	return body, nil
}

// looksLikeSitemap rejects interstitial and challenge pages that come
// back with a 200 but carry no location entries at all.
func looksLikeSitemap(body []byte) bool {
	return bytes.Contains(body, []byte("<loc")) || bytes.Contains(body, []byte("<urlset"))
}

// unwrapViewer strips the markup a browser wraps raw XML in when it
// pretty-prints it, so the XML tiers see the original document.
func unwrapViewer(body []byte) []byte {
	if !bytes.Contains(body, []byte("webkit-xml-viewer-source-xml")) &&
		!bytes.Contains(body, []byte("<pre")) {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	if inner, err := doc.Find("#webkit-xml-viewer-source-xml").Html(); err == nil && inner != "" {
		return []byte(inner)
	}
	if pre := doc.Find("pre").First().Text(); strings.Contains(pre, "<loc") {
		return []byte(pre)
	}
	return body
}

// parse runs the tier cascade: strict XML, lenient HTML, raw regex.
func parse(body []byte, src *source.Source) ([]string, string) {
	if urls := parseXML(body); len(urls) > 0 {
		return urls, TierXML
	}
	if urls := parseHTML(body); len(urls) > 0 {
		return urls, TierHTML
	}
	if urls := src.ListingPattern.FindAllString(string(body), -1); len(urls) > 0 {
		return urls, TierRegex
	}
	return nil, ""
}

func parseXML(body []byte) []string {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	nodes, err := xmlquery.QueryAll(doc, "//loc")
	if err != nil {
		return nil
	}
	urls := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if text := strings.TrimSpace(node.InnerText()); text != "" {
			urls = append(urls, text)
		}
	}
	return urls
}

func parseHTML(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("loc").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			urls = append(urls, text)
		}
	})
	return urls
}

// filter keeps listing URLs that carry the source's path marker and
// pass its sanity rules, deduplicated in first-seen order.
func filter(urls []string, src *source.Source) []string {
	seen := make(map[string]struct{}, len(urls))
	kept := make([]string, 0, len(urls))
	for _, url := range urls {
		if !strings.Contains(url, src.PathMarker) || src.ShouldSkip(url) {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		kept = append(kept, url)
	}
	return kept
}
