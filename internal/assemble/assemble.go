// Package assemble turns a classified, extracted listing page into a
// dataset record, or rejects it with a typed reason.
package assemble

import (
	"errors"
	"strings"
	"time"

	"github.com/miilabs/auction-harvester/internal/classify"
	"github.com/miilabs/auction-harvester/internal/dataset"
	"github.com/miilabs/auction-harvester/internal/extract"
	"github.com/miilabs/auction-harvester/internal/source"
)

var (
	// ErrNoSignal marks a page that produced nothing worth keeping: no
	// title, no views, no bids. Storing it would poison the dataset
	// with rows that can never be scored.
	ErrNoSignal = errors.New("listing produced no usable fields")
	// ErrInProgress marks a live auction on a source that only records
	// finished ones. The URL stays unknown so a later run retries it.
	ErrInProgress = errors.New("auction still in progress")
)

// Sale outcome values recorded in the sale_type column.
const (
	SaleTypeSold      = "sold"
	SaleTypeHighBid   = "high bid - no sale"
	SaleTypeNoReserve = "reserve not met"
	SaleTypeUnknown   = "unknown"
)

// Extraction quality values recorded per row.
const (
	ExtractionSelector = "selector"
	ExtractionMixed    = "mixed"
	ExtractionPattern  = "pattern"
)

// Assemble builds the record for one fetched listing.
func Assemble(src *source.Source, url string, doc *extract.Document, label classify.Label, now time.Time) (dataset.Record, error) {
	if label == classify.LabelPending && src.RequireSaleDate {
		return dataset.Record{}, ErrInProgress
	}

	title := extract.Field(doc, src.Title)
	amount := extract.Field(doc, src.SaleAmount)
	date := extract.Field(doc, src.SaleDate)
	seller := extract.Field(doc, src.Seller)
	location := extract.Field(doc, src.Location)
	counts := extract.Group(doc, src.Counts)

	facts := doc.Facts()
	views := extract.Count(counts["views"].Value)
	bids := extract.Count(counts["bids"].Value)
	if title.Value == "" && facts["model"] == "" && views == 0 && bids == 0 {
		return dataset.Record{}, ErrNoSignal
	}
	if src.RequireSaleDate && date.Value == "" {
		return dataset.Record{}, ErrInProgress
	}
	record := dataset.Record{
		AuctionURL:    url,
		Source:        src.Name,
		Title:         title.Value,
		Make:          resolveMake(src, title.Value, facts),
		Model:         extract.CleanModel(facts["model"]),
		Year:          extract.ResolveYear(url, title.Value, facts),
		SaleAmount:    extract.Money(amount.Value),
		SaleDate:      date.Value,
		SaleType:      ClassifySaleType(doc.Raw()),
		Views:         views,
		Bids:          bids,
		Comments:      extract.Count(counts["comments"].Value),
		Watchers:      extract.Count(counts["watchers"].Value),
		Seller:        seller.Value,
		Location:      location.Value,
		Mileage:       firstFact(facts, "mileage", "odometer"),
		VIN:           firstFact(facts, "vin", "chassis"),
		Engine:        facts["engine"],
		Drivetrain:    facts["drivetrain"],
		Transmission:  firstFact(facts, "transmission", "gearbox"),
		BodyStyle:     firstFact(facts, "body_style", "body"),
		ExteriorColor: firstFact(facts, "exterior_color", "exterior"),
		InteriorColor: firstFact(facts, "interior_color", "interior"),
		TitleStatus:   firstFact(facts, "title_status", "title"),
		ScrapedAt:     now,
		Extraction:    extractionQuality(title, amount, date, counts),
	}
	return record, nil
}

// ClassifySaleType maps the page's outcome phrasing to a stable label.
func ClassifySaleType(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "sold for"), strings.Contains(lower, "sold on"):
		return SaleTypeSold
	case strings.Contains(lower, "reserve not met"):
		return SaleTypeNoReserve
	case strings.Contains(lower, "bid to"), strings.Contains(lower, "high bid"):
		return SaleTypeHighBid
	default:
		return SaleTypeUnknown
	}
}

// resolveMake prefers the labeled make fact; for sources flagged for
// it, the first title token after the model year stands in.
func resolveMake(src *source.Source, title string, facts map[string]string) string {
	if labeled := facts["make"]; labeled != "" {
		return labeled
	}
	if !src.MakeFromTitle || title == "" {
		return ""
	}
	tokens := strings.Fields(title)
	for _, token := range tokens {
		if len(token) == 4 && isDigits(token) {
			continue
		}
		return strings.Trim(token, "()")
	}
	return ""
}

// extractionQuality summarizes which strategy tiers produced the row.
func extractionQuality(fields ...any) string {
	var sawSelector, sawPattern bool
	note := func(s extract.Strategy) {
		switch s {
		case extract.StrategySelector:
			sawSelector = true
		case extract.StrategyPattern:
			sawPattern = true
		}
	}
	for _, field := range fields {
		switch v := field.(type) {
		case extract.Result:
			note(v.Strategy)
		case map[string]extract.Result:
			for _, res := range v {
				note(res.Strategy)
			}
		}
	}
	switch {
	case sawPattern && sawSelector:
		return ExtractionMixed
	case sawPattern:
		return ExtractionPattern
	default:
		return ExtractionSelector
	}
}

func firstFact(facts map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := facts[key]; value != "" {
			return value
		}
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
