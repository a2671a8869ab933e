// Package dataset defines the listing record schema and the durable,
// deduplicated dataset built from it.
package dataset

import (
	"time"
)

// TimeLayout is the timestamp format used in the scraped_date column.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one extracted auction listing. AuctionURL is the canonical
// unique key; every other field defaults to ""/0 rather than being
// absent, so the dataset's column set never varies between runs.
// Records are never mutated after assembly; a re-scrape replaces the
// whole row (last write wins, keyed by AuctionURL).
type Record struct {
	AuctionURL    string
	Source        string
	Title         string
	Make          string
	Model         string
	Year          int // 0 means unknown
	SaleAmount    string
	SaleDate      string
	SaleType      string
	Views         int
	Bids          int
	Comments      int
	Watchers      int
	Seller        string
	Location      string
	Mileage       string
	VIN           string
	Engine        string
	Drivetrain    string
	Transmission  string
	BodyStyle     string
	ExteriorColor string
	InteriorColor string
	TitleStatus   string
	ScrapedAt     time.Time
	Extraction    string // which strategy tier produced the row
}

// Columns is the fixed CSV header, shared by every source.
var Columns = []string{
	"auction_url",
	"source",
	"title",
	"make",
	"model",
	"year",
	"sale_amount",
	"sale_date",
	"sale_type",
	"views",
	"bids",
	"comments",
	"watchers",
	"seller",
	"location",
	"mileage",
	"vin",
	"engine",
	"drivetrain",
	"transmission",
	"body_style",
	"exterior_color",
	"interior_color",
	"title_status",
	"scraped_date",
	"extraction_method",
}
