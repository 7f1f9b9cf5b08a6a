package store

import (
	"fmt"
	"strings"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/rating"
)

type dialect struct {
	name string

	// month renders a 'YYYY-MM' bucket expression for a date column.
	month func(col string) string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		name:  DriverPostgres,
		month: func(col string) string { return fmt.Sprintf("to_char(%s, 'YYYY-MM')", col) },
	},
	DriverSQLite: {
		name:  DriverSQLite,
		month: func(col string) string { return fmt.Sprintf("strftime('%%Y-%%m', %s)", col) },
	},
}

// bandMatch renders a case-insensitive predicate for labels in band b. The
// literals come from the rating vocabulary, never from input.
func bandMatch(col string, b rating.Band) string {
	labels := rating.Synonyms(b)
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + strings.ToLower(l) + "'"
	}
	return fmt.Sprintf("LOWER(%s) IN (%s)", col, strings.Join(quoted, ", "))
}

// bandCounts renders high_count, medium_count and low_count aggregates.
func bandCounts(col string) string {
	return fmt.Sprintf(`COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS high_count,
		COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS medium_count,
		COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0) AS low_count`,
		bandMatch(col, rating.High), bandMatch(col, rating.Medium), bandMatch(col, rating.Low))
}

// latestScoresCTE ranks each risk's scores newest first.
const latestScoresCTE = `WITH ranked_scores AS (
		SELECT risk_id, numeric_score,
		       ROW_NUMBER() OVER (PARTITION BY risk_id ORDER BY rating_date DESC, id DESC) AS rn
		FROM risk_scores
	)`

// where collects AND-ed predicates with their bind arguments.
type where struct {
	clauses []string
	args    []any
}

func scoped(scope model.Scope) *where {
	w := &where{}
	if scope.SiteID != nil {
		w.add("r.site_id = ?", *scope.SiteID)
	}
	if scope.ServiceID != nil {
		w.add("r.service_id = ?", *scope.ServiceID)
	}
	return w
}

func (w *where) add(clause string, args ...any) *where {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
	return w
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}
