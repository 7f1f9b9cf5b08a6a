package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/middleware"
	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/store"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
)

const (
	defaultTopRisks = 10
	maxTopRisks     = 100
	defaultMonths   = 6
	maxMonths       = 36
)

// RiskStore is the data store surface behind the dashboard endpoints.
type RiskStore interface {
	DashboardSummary(ctx context.Context, scope model.Scope) (model.DashboardSummary, error)
	TopRisks(ctx context.Context, n int, scope model.Scope) ([]model.TopRisk, error)
	TrendSeries(ctx context.Context, months int, scope model.Scope) ([]model.TrendPoint, error)
	Watchlist(ctx context.Context, scope model.Scope) ([]model.WatchlistItem, error)
	SiteSummaries(ctx context.Context, serviceID *int64) ([]model.GroupSummary, error)
	CategorySummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error)
	OwnerSummaries(ctx context.Context, scope model.Scope) ([]model.GroupSummary, error)
	AddRiskScore(ctx context.Context, req model.AddRiskScoreRequest) (model.RiskScore, error)
}

// DashboardHandler handles dashboard, report and score endpoints.
type DashboardHandler struct {
	store  RiskStore
	logger *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(s RiskStore, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:  s,
		logger: log,
	}
}

// Summary handles GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.store.DashboardSummary(r.Context(), scope)
	if err != nil {
		h.internalError(w, r, "dashboard summary", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// TopRisks handles GET /api/v1/dashboard/top-risks
func (h *DashboardHandler) TopRisks(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := queryInt(r, "count", defaultTopRisks, maxTopRisks)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	risks, err := h.store.TopRisks(r.Context(), count, scope)
	if err != nil {
		h.internalError(w, r, "top risks", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"risks": nonNil(risks),
		"count": len(risks),
	})
}

// Trend handles GET /api/v1/dashboard/trend
func (h *DashboardHandler) Trend(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	months, err := queryInt(r, "months", defaultMonths, maxMonths)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := h.store.TrendSeries(r.Context(), months, scope)
	if err != nil {
		h.internalError(w, r, "trend", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"months": months,
		"points": nonNil(points),
	})
}

// Watchlist handles GET /api/v1/dashboard/watchlist
func (h *DashboardHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.store.Watchlist(r.Context(), scope)
	if err != nil {
		h.internalError(w, r, "watchlist", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": nonNil(items),
	})
}

// SiteReport handles GET /api/v1/reports/sites
func (h *DashboardHandler) SiteReport(w http.ResponseWriter, r *http.Request) {
	service, err := queryID(r, "service_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.groupReport(w, r, "sites", func(ctx context.Context, _ model.Scope) ([]model.GroupSummary, error) {
		return h.store.SiteSummaries(ctx, service)
	})
}

// CategoryReport handles GET /api/v1/reports/categories
func (h *DashboardHandler) CategoryReport(w http.ResponseWriter, r *http.Request) {
	h.groupReport(w, r, "categories", h.store.CategorySummaries)
}

// OwnerReport handles GET /api/v1/reports/owners
func (h *DashboardHandler) OwnerReport(w http.ResponseWriter, r *http.Request) {
	h.groupReport(w, r, "owners", h.store.OwnerSummaries)
}

func (h *DashboardHandler) groupReport(w http.ResponseWriter, r *http.Request, name string,
	fetch func(context.Context, model.Scope) ([]model.GroupSummary, error)) {
	scope, err := scopeFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, err := fetch(r.Context(), scope)
	if err != nil {
		h.internalError(w, r, name+" report", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": nonNil(groups),
	})
}

type addScoreBody struct {
	RatingDate string   `json:"ratingDate"`
	Score      *float64 `json:"score"`
	RAGRating  string   `json:"ragRating"`
	Notes      string   `json:"notes"`
	EnteredBy  int64    `json:"enteredBy"`
}

// AddScore handles POST /api/v1/risks/{id}/scores
func (h *DashboardHandler) AddScore(w http.ResponseWriter, r *http.Request) {
	riskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid risk id")
		return
	}

	var body addScoreBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}

	req := model.AddRiskScoreRequest{
		RiskID:    riskID,
		Score:     *body.Score,
		RAGRating: body.RAGRating,
		Notes:     body.Notes,
		EnteredBy: body.EnteredBy,
	}
	if body.RatingDate != "" {
		req.RatingDate, err = parseDate(body.RatingDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ratingDate must be YYYY-MM-DD or RFC3339")
			return
		}
	}

	if err := middleware.ValidateScoreRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	score, err := h.store.AddRiskScore(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, score)
	case errors.Is(err, store.ErrRiskNotFound):
		writeError(w, http.StatusNotFound, "risk not found")
	case errors.Is(err, store.ErrInvalidAuthor):
		writeError(w, http.StatusUnprocessableEntity, "enteredBy must reference an existing user")
	case errors.Is(err, store.ErrInvalidRating):
		writeError(w, http.StatusUnprocessableEntity, "ragRating must be a known rating label")
	case errors.Is(err, store.ErrInvalidScore):
		writeError(w, http.StatusUnprocessableEntity, "score must be between 0 and 10")
	default:
		h.internalError(w, r, "add score", err)
	}
}

func (h *DashboardHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("data store request failed",
		zap.String("op", op),
		zap.String("correlation_id", logger.CorrelationID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// nonNil keeps empty collections encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
