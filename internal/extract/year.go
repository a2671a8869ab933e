package extract

import (
	"regexp"
	"strconv"
)

const (
	minModelYear = 1900
	maxModelYear = 2030
)

var (
	urlYearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/(?:auctions|listing)/[^/]*?-(\d{4})-`),
		regexp.MustCompile(`/(?:auctions|listing)/(\d{4})-`),
		regexp.MustCompile(`-(\d{4})-`),
	}
	titleLeadingYear = regexp.MustCompile(`^\s*((?:19|20)\d{2})\b`)
	titleParenYear   = regexp.MustCompile(`\(((?:19|20)\d{2})\)`)
	titleAnyYear     = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// yearFactKeys are the labeled fact groups consulted as the last tier.
var yearFactKeys = []string{"year", "model", "era"}

// ResolveYear infers the model year: URL path first, then a leading or
// parenthesised 4-digit title token, then any 4-digit title token,
// then the labeled year/model/era facts. The first hit inside
// [1900, 2030] wins; otherwise 0 (unknown).
func ResolveYear(url, title string, facts map[string]string) int {
	for _, pattern := range urlYearPatterns {
		if year := matchYear(pattern, url); year != 0 {
			return year
		}
	}
	for _, pattern := range []*regexp.Regexp{titleLeadingYear, titleParenYear, titleAnyYear} {
		if year := matchYear(pattern, title); year != 0 {
			return year
		}
	}
	for _, key := range yearFactKeys {
		if year := matchYear(titleAnyYear, facts[key]); year != 0 {
			return year
		}
	}
	return 0
}

func matchYear(pattern *regexp.Regexp, text string) int {
	if text == "" {
		return 0
	}
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < minModelYear || year > maxModelYear {
		return 0
	}
	return year
}
