package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/middleware"
	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
)

// ChatService runs chat turns and accepts feedback.
type ChatService interface {
	HandleMessage(ctx context.Context, req model.ChatRequest) model.ChatResponse
	SubmitFeedback(ctx context.Context, fb model.FeedbackRequest)
	Session(id string) (model.SessionInfo, bool)
}

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	service ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Send handles POST /api/v1/chat. Once the body is accepted the status is
// always 200; turn failures are reported in the response body.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateChatRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if userID := middleware.GetUserID(r.Context()); userID != "" {
		req.UserID = userID
	}

	writeJSON(w, http.StatusOK, h.service.HandleMessage(r.Context(), req))
}

// Feedback handles POST /api/v1/chat/feedback
func (h *ChatHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req model.FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateFeedback(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if userID := middleware.GetUserID(r.Context()); userID != "" {
		req.UserID = userID
	}

	h.service.SubmitFeedback(r.Context(), req)

	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

// Session handles GET /api/v1/chat/sessions/{id}
func (h *ChatHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, ok := h.service.Session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	// Authenticated callers only see their own sessions.
	if userID := middleware.GetUserID(r.Context()); userID != "" && info.UserID != userID {
		h.logger.Debug("session lookup by another user",
			zap.String("session_id", id),
			zap.String("user_id", userID),
		)
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, info)
}
