package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	firstNumber = regexp.MustCompile(`\d+`)
	whitespace  = regexp.MustCompile(`\s+`)
	saveSuffix  = regexp.MustCompile(`(?i)\bsave\b`)
)

// Count normalizes a count-like value ("12,034 views") to an integer.
// A value with no digits resolves to 0; count columns always carry a
// number so downstream statistics see zeros, not gaps.
func Count(value string) int {
	digits := firstNumber.FindString(strings.ReplaceAll(value, ",", ""))
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Money normalizes a monetary value ("Sold for $45,000") to its bare
// digits. A value with no digits resolves to the empty string — unlike
// counts, an absent price must stay absent so it is excluded from
// downstream averages rather than dragging them to zero.
func Money(value string) string {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(value, "$", ""), ",", "")
	return firstNumber.FindString(cleaned)
}

// CleanModel collapses whitespace and strips the "Save" watch-button
// text that leaks into scraped model headings.
func CleanModel(value string) string {
	value = saveSuffix.ReplaceAllString(value, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(value, " "))
}
