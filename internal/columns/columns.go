// Package columns resolves the gap between column names guessed from SQL
// text and the actual shape of executed rows. Inference is best-effort by
// design; Reconcile is the authoritative correction pass keyed on actual row
// width and must be applied before rows are handed to any consumer that
// pairs values with names.
package columns

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	selectClauseRe = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
	asAliasRe      = regexp.MustCompile(`(?i)\sAS\s+(\w+)`)
	trailingWordRe = regexp.MustCompile(`(\w+)$`)
)

// Reconcile returns a column-name slice whose length matches the width of
// rawRows. It is a pure function: the claimed slice is never mutated, and
// the same inputs always produce the same output, so independent call sites
// reach identical shapes.
func Reconcile(rawRows [][]any, claimed []string) []string {
	if len(rawRows) == 0 {
		return claimed
	}
	actualWidth := len(rawRows[0])
	if actualWidth == 0 {
		return []string{}
	}
	if len(claimed) == actualWidth {
		return claimed
	}
	if len(claimed) < actualWidth {
		padded := make([]string, 0, actualWidth)
		padded = append(padded, claimed...)
		for i := len(claimed); i < actualWidth; i++ {
			padded = append(padded, fmt.Sprintf("col_%d", i))
		}
		return padded
	}
	return claimed[:actualWidth:actualWidth]
}

// Synthetic is the last-resort naming used when nothing can be derived:
// column_1 .. column_width.
func Synthetic(width int) []string {
	names := make([]string, width)
	for i := range names {
		names[i] = fmt.Sprintf("column_%d", i+1)
	}
	return names
}

// Infer derives one name per top-level SELECT expression from SQL text.
// It frequently disagrees with the executed arity; callers must follow up
// with Reconcile.
func Infer(sqlText string) []string {
	match := selectClauseRe.FindStringSubmatch(strings.TrimSpace(sqlText))
	if match == nil {
		return []string{}
	}

	parts := splitTopLevel(match[1])
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		names = append(names, inferName(part, len(names)))
	}
	return names
}

func inferName(expr string, position int) string {
	expr = strings.TrimSpace(expr)
	if alias := asAliasRe.FindStringSubmatch(expr); alias != nil {
		return strings.ToLower(alias[1])
	}

	upper := strings.ToUpper(expr)
	switch {
	case strings.Contains(upper, "COUNT("):
		return "count"
	case strings.Contains(upper, "SUM("):
		switch {
		case strings.Contains(upper, "PRICE"):
			return "total_revenue"
		case strings.Contains(upper, "QUANTITY"):
			return "total_quantity"
		default:
			return "total"
		}
	case strings.Contains(upper, "AVG("):
		switch {
		case strings.Contains(upper, "PRICE"):
			return "avg_price"
		case strings.Contains(upper, "QUANTITY"):
			return "avg_quantity"
		default:
			return "average"
		}
	case strings.Contains(upper, "MAX("):
		return "maximum"
	case strings.Contains(upper, "MIN("):
		return "minimum"
	}

	if word := trailingWordRe.FindStringSubmatch(expr); word != nil {
		return strings.ToLower(word[1])
	}
	return fmt.Sprintf("column_%d", position+1)
}

// splitTopLevel splits a SELECT clause on commas that are not nested inside
// parentheses, so function arguments stay attached to their expression.
func splitTopLevel(clause string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range clause {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, clause[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, clause[start:])

	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}
