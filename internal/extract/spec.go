package extract

import (
	"regexp"
)

// Strategy identifies which tier of a field's chain produced a value.
type Strategy string

const (
	// StrategySelector means a structured selector candidate matched.
	StrategySelector Strategy = "selector"
	// StrategyPattern means the raw-text pattern fallback matched.
	StrategyPattern Strategy = "pattern"
	// StrategyNone means no tier produced a value.
	StrategyNone Strategy = ""
)

// FieldSpec is the ordered extraction chain for one field. Selectors
// are tried first; Patterns scan the raw page text and must capture
// the value in their first submatch.
type FieldSpec struct {
	Name      string
	Selectors []string
	Patterns  []*regexp.Regexp
}

// Result carries an extracted value and the strategy that produced it.
type Result struct {
	Value    string
	Strategy Strategy
}

// Field runs one field's full chain: first non-empty structured match
// wins, then the pattern fallback.
func Field(doc *Document, spec FieldSpec) Result {
	if value, _ := doc.FirstText(spec.Selectors); value != "" {
		return Result{Value: value, Strategy: StrategySelector}
	}
	if value := firstPattern(doc.Raw(), spec.Patterns); value != "" {
		return Result{Value: value, Strategy: StrategyPattern}
	}
	return Result{}
}

// Group runs the structured pass for every field in the group, then
// applies the pattern fallback only when the whole group came up
// empty. Markup drift tends to break a page's stat block as a unit, so
// the imprecise text patterns are admitted only once the precise path
// has produced nothing at all.
func Group(doc *Document, specs []FieldSpec) map[string]Result {
	results := make(map[string]Result, len(specs))
	anyStructured := false
	for _, spec := range specs {
		if value, _ := doc.FirstText(spec.Selectors); value != "" {
			results[spec.Name] = Result{Value: value, Strategy: StrategySelector}
			anyStructured = true
		} else {
			results[spec.Name] = Result{}
		}
	}
	if anyStructured {
		return results
	}
	raw := doc.Raw()
	for _, spec := range specs {
		if value := firstPattern(raw, spec.Patterns); value != "" {
			results[spec.Name] = Result{Value: value, Strategy: StrategyPattern}
		}
	}
	return results
}

func firstPattern(raw string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		if pattern == nil {
			continue
		}
		m := pattern.FindStringSubmatch(raw)
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}
