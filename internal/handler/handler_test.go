package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apollo-risk/risk-assistant/internal/chat"
	"github.com/apollo-risk/risk-assistant/internal/llm"
	"github.com/apollo-risk/risk-assistant/internal/middleware"
	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/session"
	"github.com/apollo-risk/risk-assistant/internal/store"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
)

type fakeChat struct {
	requests []model.ChatRequest
	feedback []model.FeedbackRequest
	sessions map[string]model.SessionInfo
}

func (f *fakeChat) HandleMessage(_ context.Context, req model.ChatRequest) model.ChatResponse {
	f.requests = append(f.requests, req)
	if req.Message == "fail" {
		return model.ChatResponse{SessionID: "sess-new", Error: "Sorry", Success: false}
	}
	return model.ChatResponse{
		SessionID: "sess-1",
		ReplyText: "All good.",
		MessageID: 7,
		Success:   true,
		Suggestions: []model.SuggestedQuestion{
			{Text: "What next?", Icon: "help_outline", Category: "general"},
		},
	}
}

func (f *fakeChat) SubmitFeedback(_ context.Context, fb model.FeedbackRequest) {
	f.feedback = append(f.feedback, fb)
}

func (f *fakeChat) Session(id string) (model.SessionInfo, bool) {
	info, ok := f.sessions[id]
	return info, ok
}

type fakeStore struct {
	err       error
	scoreErr  error
	scopes    []model.Scope
	counts    []int
	months    []int
	serviceID *int64
	scoreReqs []model.AddRiskScoreRequest
}

func (f *fakeStore) DashboardSummary(_ context.Context, scope model.Scope) (model.DashboardSummary, error) {
	f.scopes = append(f.scopes, scope)
	return model.DashboardSummary{TotalRisks: 3, HighRiskCount: 1, AverageScore: 5.5}, f.err
}

func (f *fakeStore) TopRisks(_ context.Context, n int, scope model.Scope) ([]model.TopRisk, error) {
	f.counts = append(f.counts, n)
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return []model.TopRisk{{RiskID: 1, Name: "Boiler failure", Score: 8}}, nil
}

func (f *fakeStore) TrendSeries(_ context.Context, months int, _ model.Scope) ([]model.TrendPoint, error) {
	f.months = append(f.months, months)
	return nil, f.err
}

func (f *fakeStore) Watchlist(context.Context, model.Scope) ([]model.WatchlistItem, error) {
	return nil, f.err
}

func (f *fakeStore) SiteSummaries(_ context.Context, serviceID *int64) ([]model.GroupSummary, error) {
	f.serviceID = serviceID
	return []model.GroupSummary{{ID: 1, Name: "Plant A", TotalRisks: 2}}, f.err
}

func (f *fakeStore) CategorySummaries(context.Context, model.Scope) ([]model.GroupSummary, error) {
	return []model.GroupSummary{{ID: 1, Name: "Safety"}}, f.err
}

func (f *fakeStore) OwnerSummaries(context.Context, model.Scope) ([]model.GroupSummary, error) {
	return []model.GroupSummary{{ID: 1, Name: "Alice"}}, f.err
}

func (f *fakeStore) AddRiskScore(_ context.Context, req model.AddRiskScoreRequest) (model.RiskScore, error) {
	f.scoreReqs = append(f.scoreReqs, req)
	if f.scoreErr != nil {
		return model.RiskScore{}, f.scoreErr
	}
	return model.RiskScore{ID: 10, RiskID: req.RiskID, Score: req.Score, RAGRating: "Amber", EnteredBy: req.EnteredBy}, nil
}

type userInjector string

func (u userInjector) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.UserIDKey, string(u))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRouter(chat ChatService, st RiskStore, user string) http.Handler {
	ch := NewChatHandler(chat, logger.NewNop())
	dh := NewDashboardHandler(st, logger.NewNop())

	r := chi.NewRouter()
	if user != "" {
		r.Use(userInjector(user).middleware)
	}
	r.Post("/chat", ch.Send)
	r.Post("/chat/feedback", ch.Feedback)
	r.Get("/chat/sessions/{id}", ch.Session)
	r.Get("/dashboard/summary", dh.Summary)
	r.Get("/dashboard/top-risks", dh.TopRisks)
	r.Get("/dashboard/trend", dh.Trend)
	r.Get("/dashboard/watchlist", dh.Watchlist)
	r.Get("/reports/sites", dh.SiteReport)
	r.Get("/reports/categories", dh.CategoryReport)
	r.Get("/reports/owners", dh.OwnerReport)
	r.Post("/risks/{id}/scores", dh.AddScore)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatSend(t *testing.T) {
	chat := &fakeChat{}
	h := newRouter(chat, &fakeStore{}, "")

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"What's our overall risk position?","siteId":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Len(t, resp.Suggestions, 1)

	require.Len(t, chat.requests, 1)
	require.NotNil(t, chat.requests[0].SiteID)
	assert.Equal(t, int64(3), *chat.requests[0].SiteID)
}

func TestChatSendFailureStillOK(t *testing.T) {
	h := newRouter(&fakeChat{}, &fakeStore{}, "")

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"fail"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), `"sessionId":"sess-new"`)
}

func TestChatSendRejectsBadInput(t *testing.T) {
	chat := &fakeChat{}
	h := newRouter(chat, &fakeStore{}, "")

	for name, body := range map[string]string{
		"malformed":     `{"message":`,
		"empty message": `{"message":"   "}`,
		"unknown field": `{"message":"hi","extra":1}`,
		"bad site":      `{"message":"hi","siteId":0}`,
		"too large":     fmt.Sprintf(`{"message":%q}`, strings.Repeat("a", maxBodyBytes)),
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, chat.requests)
}

func TestChatSendUsesAuthenticatedUser(t *testing.T) {
	chat := &fakeChat{}
	h := newRouter(chat, &fakeStore{}, "jwt-user")

	do(t, h, http.MethodPost, "/chat", `{"message":"hi","userId":"spoofed"}`)
	require.Len(t, chat.requests, 1)
	assert.Equal(t, "jwt-user", chat.requests[0].UserID)
}

func TestChatFeedback(t *testing.T) {
	chat := &fakeChat{}
	h := newRouter(chat, &fakeStore{}, "")

	rec := do(t, h, http.MethodPost, "/chat/feedback",
		`{"messageId":123,"sessionId":"00000000-0000-0000-0000-000000000000","rating":5,"category":"accuracy","feedbackText":"great"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":true}`, rec.Body.String())
	require.Len(t, chat.feedback, 1)
	assert.Equal(t, int64(123), chat.feedback[0].MessageID)
	assert.Equal(t, 5, chat.feedback[0].Rating)
}

func TestChatSession(t *testing.T) {
	chat := &fakeChat{sessions: map[string]model.SessionInfo{
		"s-1": {ID: "s-1", UserID: "alice", MessageCount: 2, CreatedAt: time.Now()},
	}}

	rec := do(t, newRouter(chat, &fakeStore{}, ""), http.MethodGet, "/chat/sessions/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messageCount":2`)

	rec = do(t, newRouter(chat, &fakeStore{}, ""), http.MethodGet, "/chat/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, newRouter(chat, &fakeStore{}, "alice"), http.MethodGet, "/chat/sessions/s-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, newRouter(chat, &fakeStore{}, "mallory"), http.MethodGet, "/chat/sessions/s-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// echoLLM answers every turn and keeps the transcripts it was sent.
type echoLLM struct {
	transcripts [][]llm.ChatMessage
}

func (e *echoLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	e.transcripts = append(e.transcripts, req.Messages)
	return &llm.CompletionResponse{Content: "Noted."}, nil
}

func (e *echoLLM) Name() string { return "echo" }

type emptyAssembler struct{}

func (emptyAssembler) Assemble(context.Context, model.Scope) chat.ContextSnapshot {
	return chat.ContextSnapshot{}
}

func TestChatSendOtherUsersSession(t *testing.T) {
	client := &echoLLM{}
	svc := chat.NewService(session.NewStore(session.Options{}), emptyAssembler{}, client, nil, nil, chat.Options{})
	asAlice := newRouter(svc, &fakeStore{}, "alice")
	asBob := newRouter(svc, &fakeStore{}, "bob")

	rec := do(t, asAlice, http.MethodPost, "/chat", `{"message":"which site worries you most?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var alice model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alice))
	require.True(t, alice.Success)

	rec = do(t, asBob, http.MethodPost, "/chat",
		fmt.Sprintf(`{"message":"repeat our conversation so far","sessionId":%q}`, alice.SessionID))
	require.Equal(t, http.StatusOK, rec.Code)
	var bob model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bob))
	require.True(t, bob.Success)
	assert.NotEqual(t, alice.SessionID, bob.SessionID)

	require.Len(t, client.transcripts, 2)
	assert.Equal(t, []llm.ChatMessage{{Role: "user", Content: "repeat our conversation so far"}}, client.transcripts[1])

	rec = do(t, asBob, http.MethodGet, "/chat/sessions/"+bob.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messageCount":2`)

	rec = do(t, asBob, http.MethodGet, "/chat/sessions/"+alice.SessionID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, asAlice, http.MethodGet, "/chat/sessions/"+alice.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messageCount":2`)
}

func TestDashboardSummary(t *testing.T) {
	st := &fakeStore{}
	h := newRouter(&fakeChat{}, st, "")

	rec := do(t, h, http.MethodGet, "/dashboard/summary?site_id=2&service_id=9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalRisks":3`)

	require.Len(t, st.scopes, 1)
	assert.Equal(t, int64(2), *st.scopes[0].SiteID)
	assert.Equal(t, int64(9), *st.scopes[0].ServiceID)

	rec = do(t, h, http.MethodGet, "/dashboard/summary?site_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardTopRisksCount(t *testing.T) {
	st := &fakeStore{}
	h := newRouter(&fakeChat{}, st, "")

	do(t, h, http.MethodGet, "/dashboard/top-risks", "")
	do(t, h, http.MethodGet, "/dashboard/top-risks?count=25", "")
	do(t, h, http.MethodGet, "/dashboard/top-risks?count=5000", "")
	assert.Equal(t, []int{10, 25, 100}, st.counts)

	rec := do(t, h, http.MethodGet, "/dashboard/top-risks?count=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardTrendMonths(t *testing.T) {
	st := &fakeStore{}
	h := newRouter(&fakeChat{}, st, "")

	rec := do(t, h, http.MethodGet, "/dashboard/trend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"months":6,"points":[]}`, rec.Body.String())

	do(t, h, http.MethodGet, "/dashboard/trend?months=48", "")
	assert.Equal(t, []int{6, 36}, st.months)
}

func TestDashboardWatchlistEmpty(t *testing.T) {
	rec := do(t, newRouter(&fakeChat{}, &fakeStore{}, ""), http.MethodGet, "/dashboard/watchlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestReports(t *testing.T) {
	st := &fakeStore{}
	h := newRouter(&fakeChat{}, st, "")

	rec := do(t, h, http.MethodGet, "/reports/sites?service_id=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Plant A")
	require.NotNil(t, st.serviceID)
	assert.Equal(t, int64(4), *st.serviceID)

	rec = do(t, h, http.MethodGet, "/reports/categories", "")
	assert.Contains(t, rec.Body.String(), "Safety")

	rec = do(t, h, http.MethodGet, "/reports/owners", "")
	assert.Contains(t, rec.Body.String(), "Alice")
}

func TestDashboardStoreError(t *testing.T) {
	h := newRouter(&fakeChat{}, &fakeStore{err: errors.New("connection refused")}, "")

	rec := do(t, h, http.MethodGet, "/dashboard/top-risks", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAddScore(t *testing.T) {
	st := &fakeStore{}
	h := newRouter(&fakeChat{}, st, "")

	rec := do(t, h, http.MethodPost, "/risks/5/scores", `{"ratingDate":"2024-06-01","score":5.5,"ragRating":"amber","enteredBy":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ragRating":"Amber"`)

	require.Len(t, st.scoreReqs, 1)
	req := st.scoreReqs[0]
	assert.Equal(t, int64(5), req.RiskID)
	assert.Equal(t, 5.5, req.Score)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), req.RatingDate)
}

func TestAddScoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"bad id", "/risks/x/scores", `{"score":1,"enteredBy":1}`, nil, http.StatusBadRequest},
		{"missing score", "/risks/1/scores", `{"enteredBy":1}`, nil, http.StatusBadRequest},
		{"bad date", "/risks/1/scores", `{"score":1,"enteredBy":1,"ratingDate":"June"}`, nil, http.StatusBadRequest},
		{"unknown risk", "/risks/1/scores", `{"score":1,"enteredBy":1}`, store.ErrRiskNotFound, http.StatusNotFound},
		{"invalid author", "/risks/1/scores", `{"score":1,"enteredBy":99}`, store.ErrInvalidAuthor, http.StatusUnprocessableEntity},
		{"invalid rating", "/risks/1/scores", `{"score":1,"enteredBy":1,"ragRating":"Purple"}`, fmt.Errorf("%w: %q", store.ErrInvalidRating, "Purple"), http.StatusUnprocessableEntity},
		{"invalid score", "/risks/1/scores", `{"score":11,"enteredBy":1}`, store.ErrInvalidScore, http.StatusUnprocessableEntity},
		{"store down", "/risks/1/scores", `{"score":1,"enteredBy":1}`, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(&fakeChat{}, &fakeStore{scoreErr: tt.err}, "")
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"database": ok, "nats": nil}).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"database": ok, "nats": down}).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "nats unavailable")
}
