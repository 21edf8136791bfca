// Package chartspec picks a chart kind for a result set. The decision is a
// fixed-order heuristic over column count, value types and name hints; given
// the same rows and names it always returns the same suggestion.
package chartspec

import (
	"fmt"
	"strings"

	"github.com/salestory/salestory/internal/columns"
)

const (
	KindDistribution = "distribution"
	KindTrend        = "trend"
	KindProportion   = "proportion"
	KindCorrelation  = "correlation"
	KindMatrix       = "matrix"
	KindRankedBar    = "ranked_bar"
)

// Suggestion pairs a chart kind with the columns it should plot.
type Suggestion struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	ColumnNames []string `json:"column_names"`
	Description string   `json:"description"`
}

// Suggest picks the chart kind for rows and columnNames. Names are
// reconciled against row width first, so callers may pass the pair straight
// from a query result.
func Suggest(rows [][]any, columnNames []string, title string) Suggestion {
	names := columns.Reconcile(rows, columnNames)
	if len(rows) > 0 && len(names) == 0 {
		names = columns.Synthetic(len(rows[0]))
	}
	width := len(names)

	suggestion := Suggestion{Title: title, ColumnNames: names}

	switch {
	case width == 1:
		suggestion.Kind = KindDistribution
		suggestion.Description = fmt.Sprintf("Distribution of %s values", nameAt(names, 0))
	case width >= 2 && looksTemporal(names[0]):
		suggestion.Kind = KindTrend
		suggestion.Description = fmt.Sprintf("%s over %s", nameAt(names, 1), nameAt(names, 0))
	case width == 2 && isCategorical(rows, 0) && isNumeric(rows, 1) && distinctCount(rows, 0) <= 8:
		suggestion.Kind = KindProportion
		suggestion.Description = fmt.Sprintf("Share of %s by %s", nameAt(names, 1), nameAt(names, 0))
	case width == 2 && isNumeric(rows, 0) && isNumeric(rows, 1):
		suggestion.Kind = KindCorrelation
		suggestion.Description = fmt.Sprintf("Relationship between %s and %s", nameAt(names, 0), nameAt(names, 1))
	case width >= 3 && isCategorical(rows, 0) && isCategorical(rows, 1) && isNumeric(rows, 2):
		suggestion.Kind = KindMatrix
		suggestion.Description = fmt.Sprintf("%s across %s and %s", nameAt(names, 2), nameAt(names, 0), nameAt(names, 1))
	default:
		suggestion.Kind = KindRankedBar
		suggestion.Description = fmt.Sprintf("%s ranked by %s", nameAt(names, 0), nameAt(names, 1))
	}
	return suggestion
}

func looksTemporal(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "time")
}

func isNumeric(rows [][]any, i int) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if i >= len(row) {
			return false
		}
		switch row[i].(type) {
		case float64, float32, int64, int32, int:
		default:
			return false
		}
	}
	return true
}

func isCategorical(rows [][]any, i int) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if i >= len(row) {
			return false
		}
		if _, ok := row[i].(string); !ok {
			return false
		}
	}
	return true
}

func distinctCount(rows [][]any, i int) int {
	seen := map[string]struct{}{}
	for _, row := range rows {
		if i < len(row) {
			seen[fmt.Sprint(row[i])] = struct{}{}
		}
	}
	return len(seen)
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("column_%d", i+1)
}
