package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/rating"
)

const timestampLayout = time.RFC3339

// AddRiskScore records a score and makes its rating the risk's current one.
// An empty rating label is derived from the score.
func (s *Store) AddRiskScore(ctx context.Context, req model.AddRiskScoreRequest) (model.RiskScore, error) {
	if req.Score < 0 || req.Score > 10 {
		return model.RiskScore{}, ErrInvalidScore
	}
	if req.EnteredBy <= 0 {
		return model.RiskScore{}, ErrInvalidAuthor
	}

	label := rating.ForScore(req.Score).Canonical()
	if strings.TrimSpace(req.RAGRating) != "" {
		normalized, ok := rating.Normalize(req.RAGRating)
		if !ok {
			return model.RiskScore{}, fmt.Errorf("%w: %q", ErrInvalidRating, req.RAGRating)
		}
		label = normalized
	}

	now := s.now().UTC()
	ratingDate := req.RatingDate
	if ratingDate.IsZero() {
		ratingDate = now
	}
	ratingDate = time.Date(ratingDate.Year(), ratingDate.Month(), ratingDate.Day(), 0, 0, 0, 0, time.UTC)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.RiskScore{}, fmt.Errorf("begin add score: %w", err)
	}
	defer tx.Rollback()

	if err := s.mustExist(ctx, tx, "users", req.EnteredBy, ErrInvalidAuthor); err != nil {
		return model.RiskScore{}, err
	}
	if err := s.mustExist(ctx, tx, "risks", req.RiskID, ErrRiskNotFound); err != nil {
		return model.RiskScore{}, err
	}

	var notes sql.NullString
	if req.Notes != "" {
		notes = sql.NullString{String: req.Notes, Valid: true}
	}

	var id int64
	insert := s.db.Rebind(`
		INSERT INTO risk_scores (risk_id, rating_date, rating_value, numeric_score, notes, entered_by, entered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err = tx.QueryRowxContext(ctx, insert,
		req.RiskID, ratingDate.Format("2006-01-02"), label, req.Score, notes, req.EnteredBy, now.Format(timestampLayout),
	).Scan(&id)
	if err != nil {
		return model.RiskScore{}, fmt.Errorf("insert score: %w", err)
	}

	update := s.db.Rebind(`UPDATE risks SET rag_rating = ?, last_updated = ? WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, update, label, now.Format(timestampLayout), req.RiskID); err != nil {
		return model.RiskScore{}, fmt.Errorf("update risk rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.RiskScore{}, fmt.Errorf("commit add score: %w", err)
	}

	s.logger.Info("risk score added",
		zap.Int64("score_id", id),
		zap.Int64("risk_id", req.RiskID),
		zap.String("rating", label),
		zap.Int64("entered_by", req.EnteredBy),
	)

	return model.RiskScore{
		ID:         id,
		RiskID:     req.RiskID,
		RatingDate: ratingDate,
		Score:      req.Score,
		RAGRating:  label,
		Notes:      req.Notes,
		EnteredBy:  req.EnteredBy,
		EnteredAt:  now,
	}, nil
}

// mustExist returns notFound unless table has a row with the given id.
// table is always a literal from this package.
func (s *Store) mustExist(ctx context.Context, tx queryer, table string, id int64, notFound error) error {
	var one int
	err := tx.GetContext(ctx, &one, s.db.Rebind("SELECT 1 FROM "+table+" WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("lookup %s %d: %w", table, id, err)
	}
	return nil
}

type queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}
