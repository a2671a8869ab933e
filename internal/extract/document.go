// Package extract pulls listing fields out of a rendered page using a
// declarative strategy chain per field: ordered structured selectors
// first, loosely-anchored text patterns as a last resort.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page snapshot. The extractor queries the static
// snapshot, so evaluating one selector candidate costs nothing beyond
// the query itself; the wait budget lives in the fetch step.
type Document struct {
	doc *goquery.Document
	raw string
}

// NewDocument parses a rendered HTML body.
func NewDocument(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{doc: doc, raw: string(body)}, nil
}

// Raw returns the unparsed page text, used by the pattern fallback.
func (d *Document) Raw() string {
	return d.raw
}

// FirstText returns the trimmed text of the first selector candidate
// that matches a non-empty element, and the selector that matched.
func (d *Document) FirstText(selectors []string) (string, string) {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		text := strings.TrimSpace(d.doc.Find(sel).First().Text())
		if text != "" {
			return text, sel
		}
	}
	return "", ""
}

// Facts collects labeled definition-list pairs (dt/dd) from the page,
// keyed by the lowercased label with spaces replaced by underscores.
// Auction pages use these for make, VIN, drivetrain and similar specs.
func (d *Document) Facts() map[string]string {
	facts := make(map[string]string)
	d.doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.Next()
		if !dd.Is("dd") {
			return
		}
		key := strings.ToLower(strings.TrimSpace(dt.Text()))
		key = strings.ReplaceAll(key, " ", "_")
		value := strings.TrimSpace(dd.Text())
		if key != "" && value != "" {
			facts[key] = value
		}
	})
	return facts
}
