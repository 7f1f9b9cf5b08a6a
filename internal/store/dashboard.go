package store

import (
	"context"
	"fmt"
	"time"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

// DashboardSummary returns counts by current rating and the average and sum
// of each risk's latest score.
func (s *Store) DashboardSummary(ctx context.Context, scope model.Scope) (model.DashboardSummary, error) {
	w := scoped(scope)
	query := fmt.Sprintf(`%s
		SELECT COUNT(*) AS total_risks,
		       %s,
		       COALESCE(AVG(ls.numeric_score), 0) AS average_score,
		       COALESCE(SUM(ls.numeric_score), 0) AS aggregate_score
		FROM risks r
		LEFT JOIN ranked_scores ls ON ls.risk_id = r.id AND ls.rn = 1
		%s`, latestScoresCTE, bandCounts("r.rag_rating"), w)

	var summary model.DashboardSummary
	if err := s.db.GetContext(ctx, &summary, s.db.Rebind(query), w.args...); err != nil {
		return model.DashboardSummary{}, fmt.Errorf("dashboard summary: %w", err)
	}
	return summary, nil
}

// TopRisks returns up to n risks ordered by latest score, with the change
// from the previous score.
func (s *Store) TopRisks(ctx context.Context, n int, scope model.Scope) ([]model.TopRisk, error) {
	w := scoped(scope)
	query := fmt.Sprintf(`%s
		SELECT r.id AS risk_id,
		       r.name,
		       COALESCE(si.name, '') AS site_name,
		       COALESCE(rc.name, '') AS category_name,
		       COALESCE(u.name, '') AS owner_name,
		       COALESCE(ls.numeric_score, 0) AS score,
		       COALESCE(r.rag_rating, '') AS rag_rating,
		       CASE
		           WHEN ps.numeric_score IS NOT NULL AND ls.numeric_score IS NOT NULL
		           THEN ROUND(ls.numeric_score - ps.numeric_score, 1)
		       END AS variance,
		       CASE
		           WHEN ps.numeric_score IS NULL OR ls.numeric_score IS NULL THEN 'stable'
		           WHEN ls.numeric_score > ps.numeric_score THEN 'up'
		           WHEN ls.numeric_score < ps.numeric_score THEN 'down'
		           ELSE 'stable'
		       END AS trend_direction
		FROM risks r
		LEFT JOIN sites si ON r.site_id = si.id
		LEFT JOIN risk_categories rc ON r.risk_category_id = rc.id
		LEFT JOIN users u ON r.owner_id = u.id
		LEFT JOIN ranked_scores ls ON ls.risk_id = r.id AND ls.rn = 1
		LEFT JOIN ranked_scores ps ON ps.risk_id = r.id AND ps.rn = 2
		%s
		ORDER BY COALESCE(ls.numeric_score, 0) DESC, r.id
		LIMIT ?`, latestScoresCTE, w)

	args := append(w.args, n)
	var risks []model.TopRisk
	if err := s.db.SelectContext(ctx, &risks, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("top risks: %w", err)
	}
	return risks, nil
}

// Watchlist returns watchlisted risks with their latest score.
func (s *Store) Watchlist(ctx context.Context, scope model.Scope) ([]model.WatchlistItem, error) {
	w := scoped(scope)
	query := fmt.Sprintf(`%s
		SELECT w.risk_id,
		       r.name,
		       COALESCE(si.name, '') AS site_name,
		       COALESCE(ls.numeric_score, 0) AS score,
		       COALESCE(r.rag_rating, '') AS rag_rating,
		       COALESCE(w.reason, '') AS reason
		FROM watchlist_items w
		INNER JOIN risks r ON w.risk_id = r.id
		LEFT JOIN sites si ON r.site_id = si.id
		LEFT JOIN ranked_scores ls ON ls.risk_id = r.id AND ls.rn = 1
		%s
		ORDER BY COALESCE(ls.numeric_score, 0) DESC, w.id`, latestScoresCTE, w)

	var items []model.WatchlistItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("watchlist: %w", err)
	}
	return items, nil
}

type trendRow struct {
	Month        string  `db:"month"`
	AverageScore float64 `db:"average_score"`
	HighCount    int     `db:"high_count"`
	MediumCount  int     `db:"medium_count"`
	LowCount     int     `db:"low_count"`
}

// TrendSeries aggregates score entries per calendar month over the last
// months months, oldest first. Bands come from each entry's own label.
func (s *Store) TrendSeries(ctx context.Context, months int, scope model.Scope) ([]model.TrendPoint, error) {
	cutoff := s.now().AddDate(0, -months, 0).Format("2006-01-02")
	w := scoped(scope).add("s.rating_date >= ?", cutoff)

	query := fmt.Sprintf(`
		SELECT %s AS month,
		       COALESCE(AVG(s.numeric_score), 0) AS average_score,
		       %s
		FROM risk_scores s
		INNER JOIN risks r ON s.risk_id = r.id
		%s
		GROUP BY 1
		ORDER BY 1`, s.dialect.month("s.rating_date"), bandCounts("s.rating_value"), w)

	var rows []trendRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("trend series: %w", err)
	}

	points := make([]model.TrendPoint, 0, len(rows))
	for _, row := range rows {
		month, err := time.Parse("2006-01", row.Month)
		if err != nil {
			return nil, fmt.Errorf("trend series: bad month bucket %q: %w", row.Month, err)
		}
		points = append(points, model.TrendPoint{
			Month:           month,
			AverageScore:    row.AverageScore,
			HighRiskCount:   row.HighCount,
			MediumRiskCount: row.MediumCount,
			LowRiskCount:    row.LowCount,
		})
	}
	return points, nil
}

func (s *Store) groupSummaries(ctx context.Context, name, join, idCol, nameCol string, w *where) ([]model.GroupSummary, error) {
	query := fmt.Sprintf(`%s
		SELECT %s AS group_id, %s AS group_name,
		       COUNT(*) AS total_risks,
		       %s,
		       COALESCE(AVG(ls.numeric_score), 0) AS average_score
		FROM risks r
		%s
		LEFT JOIN ranked_scores ls ON ls.risk_id = r.id AND ls.rn = 1
		%s
		GROUP BY %s, %s
		ORDER BY average_score DESC, %s`,
		latestScoresCTE, idCol, nameCol, bandCounts("r.rag_rating"), join, w, idCol, nameCol, nameCol)

	var out []model.GroupSummary
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), w.args...); err != nil {
		return nil, fmt.Errorf("%s summaries: %w", name, err)
	}
	return out, nil
}

// SiteSummaries groups risks by site, optionally within one service.
func (s *Store) SiteSummaries(ctx context.Context, serviceID *int64) ([]model.GroupSummary, error) {
	return s.groupSummaries(ctx, "site", "INNER JOIN sites g ON r.site_id = g.id",
		"g.id", "g.name", scoped(model.Scope{ServiceID: serviceID}))
}

// CategorySummaries groups risks by category.
func (s *Store) CategorySummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error) {
	return s.groupSummaries(ctx, "category", "INNER JOIN risk_categories g ON r.risk_category_id = g.id",
		"g.id", "g.name", scoped(scope))
}

// OwnerSummaries groups risks by owner.
func (s *Store) OwnerSummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error) {
	return s.groupSummaries(ctx, "owner", "INNER JOIN users g ON r.owner_id = g.id",
		"g.id", "g.name", scoped(scope))
}
