// Package chat implements the risk assistant's chat turn: context assembly,
// prompt rendering, the completion call and reply post-processing.
package chat

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/llm"
	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/session"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
	"github.com/apollo-risk/risk-assistant/pkg/metrics"
)

// ErrorMessage is the only failure text callers ever see.
const ErrorMessage = "Sorry, I couldn't process your request right now. Please try again."

const (
	DefaultMaxTokens    = 8192
	DefaultTemperature  = 0.5
	DefaultHistoryLimit = 10

	sourceExtracted = "extracted"
	sourceFallback  = "fallback"
)

// ContextAssembler builds the data snapshot for one turn.
type ContextAssembler interface {
	Assemble(ctx context.Context, scope model.Scope) ContextSnapshot
}

// EventPublisher receives chat events. Implementations are best-effort.
type EventPublisher interface {
	PublishTurn(ctx context.Context, ev *model.TurnEvent) error
	PublishFeedback(ctx context.Context, ev *model.FeedbackEvent) error
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Model     string
	MaxTokens int
	// Temperature is nil for the default; zero is a valid setting.
	Temperature  *float64
	HistoryLimit int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service orchestrates chat turns.
type Service struct {
	sessions  *session.Store
	assembler ContextAssembler
	client    llm.Client
	events    EventPublisher
	logger    *logger.Logger
	opts      Options

	lastMessageID atomic.Int64
}

// NewService creates a chat service. events may be nil.
func NewService(sessions *session.Store, assembler ContextAssembler, client llm.Client, events EventPublisher, log *logger.Logger, opts Options) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == nil {
		t := DefaultTemperature
		opts.Temperature = &t
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Service{
		sessions:  sessions,
		assembler: assembler,
		client:    client,
		events:    events,
		logger:    log,
		opts:      opts,
	}
}

// HandleMessage runs one chat turn. It always returns a response carrying a
// usable session id; failures are reported through Success and Error.
func (s *Service) HandleMessage(ctx context.Context, req model.ChatRequest) (resp model.ChatResponse) {
	start := s.opts.Now()

	ctx, span := tracer.Start(ctx, "chat.turn", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	sessionID, isNew := s.sessions.ResolveOrCreate(req.SessionID, req.UserID)
	log := s.logger.WithSession(logger.CorrelationID(ctx), sessionID, req.UserID)
	span.SetAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.Bool("chat.session_new", isNew),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("chat turn panicked", zap.Any("panic", r), zap.Stack("stack"))
			span.SetStatus(codes.Error, "panic")
			resp = s.fail(ctx, sessionID, req.UserID, start)
		}
	}()

	log.Debug("chat message received", zap.Bool("new_session", isNew), zap.String("message", req.Message))

	snap := s.assembler.Assemble(ctx, model.Scope{SiteID: req.SiteID, ServiceID: req.ServiceID})
	system := SystemPrompt(snap, start)

	s.sessions.RecordInbound(sessionID, req.Message)
	history := s.sessions.RecentHistory(sessionID, s.opts.HistoryLimit)

	messages := make([]llm.ChatMessage, len(history))
	for i, m := range history {
		messages[i] = llm.ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	callStart := time.Now()
	completion, err := s.client.Complete(ctx, &llm.CompletionRequest{
		Model:       s.opts.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: *s.opts.Temperature,
	})
	if err != nil {
		status := 0
		var cerr *llm.CompletionError
		if errors.As(err, &cerr) {
			status = cerr.StatusCode
		}
		metrics.RecordCompletion(s.client.Name(), "", "error", time.Since(callStart).Seconds(), 0, 0)
		log.Error("completion failed",
			zap.String("provider", s.client.Name()),
			zap.Int("status", status),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return s.fail(ctx, sessionID, req.UserID, start)
	}
	metrics.RecordCompletion(s.client.Name(), completion.Model, "ok", time.Since(callStart).Seconds(),
		completion.TokensIn, completion.TokensOut)

	s.sessions.RecordOutbound(sessionID, completion.Content)

	reply, suggestions := Extract(completion.Content)
	source := sourceExtracted
	if len(suggestions) == 0 {
		suggestions = DefaultSuggestions(req.Message)
		source = sourceFallback
	}
	metrics.SuggestionsTotal.WithLabelValues(source).Inc()
	metrics.ChatTurnsTotal.WithLabelValues(string(model.TurnOutcomeSuccess)).Inc()

	messageID := s.nextMessageID()
	log.Info("chat turn completed",
		zap.Int64("message_id", messageID),
		zap.String("suggestion_source", source),
		zap.Int("suggestions", len(suggestions)),
		zap.Int("tokens_in", completion.TokensIn),
		zap.Int("tokens_out", completion.TokensOut),
		zap.Duration("latency", s.opts.Now().Sub(start)),
	)

	s.publishTurn(ctx, log, &model.TurnEvent{
		SessionID:        sessionID,
		UserID:           req.UserID,
		MessageID:        messageID,
		Outcome:          model.TurnOutcomeSuccess,
		SuggestionSource: source,
		Model:            completion.Model,
		TokensIn:         completion.TokensIn,
		TokensOut:        completion.TokensOut,
		LatencyMs:        s.opts.Now().Sub(start).Milliseconds(),
	})

	return model.ChatResponse{
		SessionID:   sessionID,
		ReplyText:   reply,
		MessageID:   messageID,
		Success:     true,
		Suggestions: suggestions,
	}
}

func (s *Service) fail(ctx context.Context, sessionID, userID string, start time.Time) model.ChatResponse {
	metrics.ChatTurnsTotal.WithLabelValues(string(model.TurnOutcomeFailure)).Inc()
	s.publishTurn(ctx, s.logger, &model.TurnEvent{
		SessionID: sessionID,
		UserID:    userID,
		Outcome:   model.TurnOutcomeFailure,
		LatencyMs: s.opts.Now().Sub(start).Milliseconds(),
	})
	return model.ChatResponse{
		SessionID: sessionID,
		Success:   false,
		Error:     ErrorMessage,
	}
}

// SubmitFeedback records a rating for a reply. Unknown message or session
// ids are accepted as-is.
func (s *Service) SubmitFeedback(ctx context.Context, fb model.FeedbackRequest) {
	metrics.FeedbackTotal.WithLabelValues(ratingLabel(fb.Rating)).Inc()

	s.logger.WithSession(logger.CorrelationID(ctx), fb.SessionID, fb.UserID).Info("feedback received",
		zap.Int64("message_id", fb.MessageID),
		zap.Int("rating", fb.Rating),
		zap.String("category", fb.Category),
		zap.String("feedback", fb.FeedbackText),
	)

	if s.events == nil {
		return
	}
	ev := &model.FeedbackEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Feedback:  fb,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.events.PublishFeedback(ctx, ev); err != nil {
		s.logger.Warn("failed to publish feedback event", zap.String("session_id", fb.SessionID), zap.Error(err))
	}
}

func ratingLabel(r int) string {
	if r < -1 || r > 5 {
		return "other"
	}
	return strconv.Itoa(r)
}

// Session returns a read-only view of a live session.
func (s *Service) Session(id string) (model.SessionInfo, bool) {
	return s.sessions.Get(id)
}

func (s *Service) publishTurn(ctx context.Context, log *logger.Logger, ev *model.TurnEvent) {
	if s.events == nil {
		return
	}
	ev.ID = uuid.Must(uuid.NewV7()).String()
	ev.CreatedAt = s.opts.Now().UTC()
	if err := s.events.PublishTurn(ctx, ev); err != nil {
		log.Warn("failed to publish turn event", zap.Error(err))
	}
}

// nextMessageID derives ids from the wall clock but never repeats or goes
// backwards within the process.
func (s *Service) nextMessageID() int64 {
	now := s.opts.Now().UnixNano()
	for {
		last := s.lastMessageID.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.lastMessageID.CompareAndSwap(last, next) {
			return next
		}
	}
}
