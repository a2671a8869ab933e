// Package source holds the per-site harvest configuration: where the
// sitemap lives, how listing URLs look, which selectors and patterns
// extract each field, and how politely the site must be paced.
package source

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/miilabs/auction-harvester/internal/classify"
	"github.com/miilabs/auction-harvester/internal/extract"
)

const (
	// maxURLDashes rejects tag-soup URLs that concatenate every model
	// trim into one slug. Real listing slugs stay well under this.
	maxURLDashes = 15
	// maxURLLength rejects runaway query strings and redirect chains.
	maxURLLength = 200
)

// Source is one auction site's complete harvest configuration.
type Source struct {
	Name           string
	SitemapURL     string
	PathMarker     string
	ListingPattern *regexp.Regexp
	SkipSubstrings []string

	PaceDelay time.Duration
	MaxPerRun int

	DatasetObject string
	BackupPrefix  string

	Title      extract.FieldSpec
	SaleAmount extract.FieldSpec
	SaleDate   extract.FieldSpec
	Seller     extract.FieldSpec
	Location   extract.FieldSpec
	Counts     []extract.FieldSpec

	Markers classify.Markers
	// SettleWait is the extra render wait applied per page label.
	SettleWait map[classify.Label]time.Duration

	// RequireSaleDate skips listings whose auction has not concluded;
	// some sites interleave live and finished auctions in one sitemap.
	RequireSaleDate bool
	// MakeFromTitle derives the make from the first post-year title
	// token when the page carries no labeled make fact.
	MakeFromTitle bool
}

// ShouldSkip reports whether a discovered URL fails the sanity filter:
// a configured skip substring, too many dashes, or excessive length.
func (s *Source) ShouldSkip(url string) bool {
	for _, sub := range s.SkipSubstrings {
		if sub != "" && strings.Contains(url, sub) {
			return true
		}
	}
	if strings.Count(url, "-") > maxURLDashes {
		return true
	}
	return len(url) > maxURLLength
}

// BringATrailer is the Bring a Trailer harvest configuration.
func BringATrailer() *Source {
	return &Source{
		Name:           "bat",
		SitemapURL:     "https://bringatrailer.com/sitemap_auctions.xml",
		PathMarker:     "/listing/",
		ListingPattern: regexp.MustCompile(`https://bringatrailer\.com/listing/[a-z0-9-]+/`),
		SkipSubstrings: []string{"convertible-67", "listing/test-", "preview-"},

		PaceDelay: 2500 * time.Millisecond,
		MaxPerRun: 250,

		DatasetObject: "datasets/bat_auctions.csv",
		BackupPrefix:  "backups/bat_auctions",

		Title: extract.FieldSpec{
			Name:      "title",
			Selectors: []string{"h1.post-title", "h1.listing-title", "h1"},
		},
		SaleAmount: extract.FieldSpec{
			Name:      "sale_amount",
			Selectors: []string{"span.info-value", "strong.info-value"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`[Ss]old for .{0,20}?\$([\d,]+)`),
				regexp.MustCompile(`[Bb]id to .{0,20}?\$([\d,]+)`),
			},
		},
		SaleDate: extract.FieldSpec{
			Name:      "sale_date",
			Selectors: []string{"span.date", "span.listing-available-info span.date"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bon (\d{1,2}/\d{1,2}/\d{2,4})`),
			},
		},
		Seller: extract.FieldSpec{
			Name:      "seller",
			Selectors: []string{"div.essentials a[href*='/member/']"},
		},
		Location: extract.FieldSpec{
			Name:      "location",
			Selectors: []string{"div.essentials a[href*='maps']"},
		},
		Counts: []extract.FieldSpec{
			{
				Name:      "views",
				Selectors: []string{"span.views", "td.listing-stats-views"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`views?["\s:]+(\d[\d,]*)`),
					regexp.MustCompile(`([\d,]+)\s+views`),
				},
			},
			{
				Name:      "bids",
				Selectors: []string{"span.bids", "td.listing-stats-bids"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`bids?["\s:]+(\d[\d,]*)`),
					regexp.MustCompile(`([\d,]+)\s+bids`),
				},
			},
			{
				Name:      "comments",
				Selectors: []string{"span.comments_header_html", "span.comments-count"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`([\d,]+)\s+[Cc]omments`),
				},
			},
			{
				Name:      "watchers",
				Selectors: []string{"span.watchers", "span.watch-count"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`([\d,]+)\s+watchers`),
				},
			},
		},

		Markers: classify.Markers{
			Error:     [][]byte{[]byte("Page not found"), []byte("you may have mistyped")},
			Completed: [][]byte{[]byte("Sold for"), []byte("Bid to"), []byte("sold on")},
			Pending:   [][]byte{[]byte("Auction ends"), []byte("Current Bid")},
			Normal:    [][]byte{[]byte("listing-essentials")},
		},
		// Finished and error pages have their result markup in the
		// first render; only plain listing pages and unrecognized
		// bodies get the full settle wait.
		SettleWait: map[classify.Label]time.Duration{
			classify.LabelCompleted: time.Second,
			classify.LabelPending:   time.Second,
			classify.LabelNormal:    3 * time.Second,
			classify.LabelUnknown:   3 * time.Second,
		},

		MakeFromTitle: true,
	}
}

// CarsAndBids is the Cars & Bids harvest configuration. The site is a
// full client-side app, so it gets longer settle waits and a lower
// per-run cap, and live auctions are skipped outright.
func CarsAndBids() *Source {
	return &Source{
		Name:           "cnb",
		SitemapURL:     "https://carsandbids.com/sitemap.xml",
		PathMarker:     "/auctions/",
		ListingPattern: regexp.MustCompile(`https://carsandbids\.com/auctions/[A-Za-z0-9]+/[a-z0-9-]+`),
		SkipSubstrings: []string{"/auctions/sitemap", "preview-"},

		PaceDelay: 3 * time.Second,
		MaxPerRun: 100,

		DatasetObject: "datasets/cnb_auctions.csv",
		BackupPrefix:  "backups/cnb_auctions",

		Title: extract.FieldSpec{
			Name:      "title",
			Selectors: []string{"div.auction-title h1", "h1.auction-title", "h1"},
		},
		SaleAmount: extract.FieldSpec{
			Name:      "sale_amount",
			Selectors: []string{"span.bid-value", "div.current-bid span.value"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`[Ss]old for .{0,20}?\$([\d,]+)`),
			},
		},
		SaleDate: extract.FieldSpec{
			Name:      "sale_date",
			Selectors: []string{"span.end-date", "div.auction-ended span.date"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bon (\d{1,2}/\d{1,2}/\d{2,4})`),
			},
		},
		Seller: extract.FieldSpec{
			Name:      "seller",
			Selectors: []string{"div.seller a.user", "dd.seller a"},
		},
		Location: extract.FieldSpec{
			Name:      "location",
			Selectors: []string{"dd.location", "div.quick-facts dd a[href*='maps']"},
		},
		Counts: []extract.FieldSpec{
			{
				Name:      "views",
				Selectors: []string{"span.views-count"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`views?["\s:]+(\d[\d,]*)`),
				},
			},
			{
				Name:      "bids",
				Selectors: []string{"span.num-bids", "div.bid-stats span.bids"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`bids?["\s:]+(\d[\d,]*)`),
				},
			},
			{
				Name:      "comments",
				Selectors: []string{"span.comments-count"},
				Patterns: []*regexp.Regexp{
					regexp.MustCompile(`comments?["\s:]+(\d[\d,]*)`),
				},
			},
			{
				Name:      "watchers",
				Selectors: []string{"span.watchers-count"},
			},
		},

		Markers: classify.Markers{
			Error:     [][]byte{[]byte("Whoops!"), []byte("page you were looking for")},
			Completed: [][]byte{[]byte("Sold for"), []byte("auction-ended")},
			Pending:   [][]byte{[]byte("Ending in"), []byte("time-left")},
			Normal:    [][]byte{[]byte("auction-title")},
		},
		SettleWait: map[classify.Label]time.Duration{
			classify.LabelCompleted: 2 * time.Second,
			classify.LabelPending:   time.Second,
			classify.LabelNormal:    5 * time.Second,
			classify.LabelUnknown:   5 * time.Second,
		},

		RequireSaleDate: true,
	}
}

// ByName looks up a registered source.
func ByName(name string) (*Source, error) {
	switch strings.ToLower(name) {
	case "bat", "bringatrailer":
		return BringATrailer(), nil
	case "cnb", "carsandbids":
		return CarsAndBids(), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want bat or cnb)", name)
	}
}

// All returns every registered source.
func All() []*Source {
	return []*Source{BringATrailer(), CarsAndBids()}
}
