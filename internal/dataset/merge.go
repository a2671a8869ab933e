package dataset

import "sort"

// Merge concatenates existing and batch, drops duplicate keys keeping
// the most recently appended row per key, and sorts by year descending
// with unknown years last. Merging a batch of already-known keys with
// identical rows yields the same row set back (dedup is idempotent).
func Merge(existing, batch []Record) []Record {
	combined := make([]Record, 0, len(existing)+len(batch))
	combined = append(combined, existing...)
	combined = append(combined, batch...)

	// Last write wins: a later index for the same key replaces the
	// earlier row in place, preserving first-seen ordering for ties.
	byKey := make(map[string]int, len(combined))
	deduped := combined[:0]
	for _, rec := range combined {
		if i, seen := byKey[rec.AuctionURL]; seen {
			deduped[i] = rec
			continue
		}
		byKey[rec.AuctionURL] = len(deduped)
		deduped = append(deduped, rec)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		yi, yj := deduped[i].Year, deduped[j].Year
		switch {
		case yi == 0:
			return false
		case yj == 0:
			return true
		default:
			return yi > yj
		}
	})
	return deduped
}

// Keys returns the set of AuctionURL values in records.
func Keys(records []Record) map[string]struct{} {
	keys := make(map[string]struct{}, len(records))
	for _, rec := range records {
		keys[rec.AuctionURL] = struct{}{}
	}
	return keys
}
