package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apollo-risk/risk-assistant/internal/llm"
	"github.com/apollo-risk/risk-assistant/internal/model"
)

var errUnavailable = errors.New("database unavailable")

type fakeSource struct {
	fail map[string]bool

	mu     sync.Mutex
	scopes []model.Scope
}

func (f *fakeSource) err(section string) error {
	if f.fail[section] {
		return errUnavailable
	}
	return nil
}

func (f *fakeSource) record(scope model.Scope) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()
}

func (f *fakeSource) DashboardSummary(_ context.Context, scope model.Scope) (model.DashboardSummary, error) {
	f.record(scope)
	if err := f.err("summary"); err != nil {
		return model.DashboardSummary{}, err
	}
	return model.DashboardSummary{TotalRisks: 12, HighRiskCount: 3, MediumRiskCount: 5, LowRiskCount: 4, AverageScore: 5.04, AggregateScore: 60.5}, nil
}

func (f *fakeSource) TopRisks(_ context.Context, n int, _ model.Scope) ([]model.TopRisk, error) {
	if err := f.err("top_risks"); err != nil {
		return nil, err
	}
	v := 2.5
	risks := []model.TopRisk{
		{RiskID: 1, Name: "Boiler failure", SiteName: "Plant A", CategoryName: "Safety", OwnerName: "Alice", Score: 8.5, RAGRating: "High", Variance: &v, TrendDirection: "up"},
		{RiskID: 2, Name: "Data breach", SiteName: "Plant B", CategoryName: "Compliance", OwnerName: "Bob", Score: 5, RAGRating: "amber", TrendDirection: "stable"},
	}
	if n < len(risks) {
		risks = risks[:n]
	}
	return risks, nil
}

func (f *fakeSource) SiteSummaries(context.Context, *int64) ([]model.GroupSummary, error) {
	if err := f.err("sites"); err != nil {
		return nil, err
	}
	return []model.GroupSummary{{ID: 1, Name: "Plant A", TotalRisks: 7, HighRisk: 2, MediumRisk: 3, LowRisk: 2, AverageScore: 5.26}}, nil
}

func (f *fakeSource) CategorySummaries(context.Context, model.Scope) ([]model.GroupSummary, error) {
	if err := f.err("categories"); err != nil {
		return nil, err
	}
	return []model.GroupSummary{{ID: 1, Name: "Safety", TotalRisks: 4, HighRisk: 1, MediumRisk: 2, LowRisk: 1, AverageScore: 4.8}}, nil
}

func (f *fakeSource) OwnerSummaries(context.Context, model.Scope) ([]model.GroupSummary, error) {
	if err := f.err("owners"); err != nil {
		return nil, err
	}
	return []model.GroupSummary{{ID: 1, Name: "Alice", TotalRisks: 3, HighRisk: 1, MediumRisk: 1, LowRisk: 1, AverageScore: 6}}, nil
}

func (f *fakeSource) TrendSeries(_ context.Context, months int, _ model.Scope) ([]model.TrendPoint, error) {
	if err := f.err("trend"); err != nil {
		return nil, err
	}
	return []model.TrendPoint{
		{Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), AverageScore: 7, HighRiskCount: 1, MediumRiskCount: 1},
		{Month: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), AverageScore: 6, MediumRiskCount: 1},
	}, nil
}

func (f *fakeSource) Watchlist(context.Context, model.Scope) ([]model.WatchlistItem, error) {
	if err := f.err("watchlist"); err != nil {
		return nil, err
	}
	return []model.WatchlistItem{{RiskID: 1, Name: "Boiler failure", SiteName: "Plant A", Score: 8.5, RAGRating: "Extreme"}}, nil
}

func (f *fakeSource) Sites(context.Context) ([]model.Site, error) {
	if err := f.err("site_list"); err != nil {
		return nil, err
	}
	return []model.Site{{ID: 1, Name: "Plant A"}, {ID: 2, Name: "Plant B"}}, nil
}

func (f *fakeSource) Services(context.Context) ([]model.Service, error) {
	if err := f.err("service_list"); err != nil {
		return nil, err
	}
	return []model.Service{{ID: 1, Name: "Operations"}}, nil
}

func (f *fakeSource) Categories(context.Context) ([]model.Category, error) {
	if err := f.err("category_list"); err != nil {
		return nil, err
	}
	return []model.Category{{ID: 1, Name: "Safety"}, {ID: 2, Name: "Compliance"}}, nil
}

func (f *fakeSource) Users(context.Context) ([]model.User, error) {
	if err := f.err("user_list"); err != nil {
		return nil, err
	}
	return []model.User{{ID: 1, Name: "Alice"}}, nil
}

// fakeLLM replays scripted replies and records every request.
type fakeLLM struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []*llm.CompletionRequest
	panicked bool
}

func (f *fakeLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panicked {
		panic("provider blew up")
	}

	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.replies) {
		return nil, llm.ErrEmptyCompletion
	}
	return &llm.CompletionResponse{Content: f.replies[i], Model: "fake-1", TokensIn: 100, TokensOut: 20}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type recordingPublisher struct {
	mu       sync.Mutex
	turns    []*model.TurnEvent
	feedback []*model.FeedbackEvent
	err      error
}

func (p *recordingPublisher) PublishTurn(_ context.Context, ev *model.TurnEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, ev)
	return p.err
}

func (p *recordingPublisher) PublishFeedback(_ context.Context, ev *model.FeedbackEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedback = append(p.feedback, ev)
	return p.err
}
