package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// EncodeCSV renders records as a CSV document with the fixed header.
func EncodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(encodeRow(rec)); err != nil {
			return nil, fmt.Errorf("write row %s: %w", rec.AuctionURL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a dataset document. Column order is taken from the
// header row, so files written by older schema revisions still load as
// long as auction_url is present.
func DecodeCSV(data []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	if _, ok := index["auction_url"]; !ok {
		return nil, fmt.Errorf("missing auction_url column")
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		rec := Record{
			AuctionURL:    field("auction_url"),
			Source:        field("source"),
			Title:         field("title"),
			Make:          field("make"),
			Model:         field("model"),
			Year:          parseInt(field("year")),
			SaleAmount:    field("sale_amount"),
			SaleDate:      field("sale_date"),
			SaleType:      field("sale_type"),
			Views:         parseInt(field("views")),
			Bids:          parseInt(field("bids")),
			Comments:      parseInt(field("comments")),
			Watchers:      parseInt(field("watchers")),
			Seller:        field("seller"),
			Location:      field("location"),
			Mileage:       field("mileage"),
			VIN:           field("vin"),
			Engine:        field("engine"),
			Drivetrain:    field("drivetrain"),
			Transmission:  field("transmission"),
			BodyStyle:     field("body_style"),
			ExteriorColor: field("exterior_color"),
			InteriorColor: field("interior_color"),
			TitleStatus:   field("title_status"),
			Extraction:    field("extraction_method"),
		}
		if ts := field("scraped_date"); ts != "" {
			if parsed, perr := time.Parse(TimeLayout, ts); perr == nil {
				rec.ScrapedAt = parsed
			}
		}
		if rec.AuctionURL == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeRow(rec Record) []string {
	year := ""
	if rec.Year != 0 {
		year = strconv.Itoa(rec.Year)
	}
	scraped := ""
	if !rec.ScrapedAt.IsZero() {
		scraped = rec.ScrapedAt.Format(TimeLayout)
	}
	return []string{
		rec.AuctionURL,
		rec.Source,
		rec.Title,
		rec.Make,
		rec.Model,
		year,
		rec.SaleAmount,
		rec.SaleDate,
		rec.SaleType,
		strconv.Itoa(rec.Views),
		strconv.Itoa(rec.Bids),
		strconv.Itoa(rec.Comments),
		strconv.Itoa(rec.Watchers),
		rec.Seller,
		rec.Location,
		rec.Mileage,
		rec.VIN,
		rec.Engine,
		rec.Drivetrain,
		rec.Transmission,
		rec.BodyStyle,
		rec.ExteriorColor,
		rec.InteriorColor,
		rec.TitleStatus,
		scraped,
		rec.Extraction,
	}
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
