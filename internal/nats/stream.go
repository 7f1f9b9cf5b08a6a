package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/pkg/logger"
	"github.com/apollo-risk/risk-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the chat events stream.
	StreamName = "RISKCHAT"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"

	publishTimeout = 5 * time.Second
)

// streamAPI is the subset of jetstream.JetStream the publisher needs.
type streamAPI interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher writes chat turn and feedback events to JetStream.
type Publisher struct {
	js     streamAPI
	logger *logger.Logger
}

// NewPublisher creates a publisher on top of a connected client.
func NewPublisher(client *Client, log *logger.Logger) *Publisher {
	return newPublisher(client.JetStream(), log)
}

func newPublisher(js streamAPI, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Publisher{js: js, logger: log}
}

// EnsureStream creates the chat events stream if it does not exist.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Duplicates:  2 * time.Minute,
		Description: "Risk assistant chat turns and feedback",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("created JetStream stream", zap.String("stream", StreamName))
	return nil
}

// TurnSubject returns the subject for a turn event.
func TurnSubject(sessionID string, outcome model.TurnOutcome) string {
	return fmt.Sprintf("%s.%s.turn.%s", SubjectPrefix, token(sessionID), token(string(outcome)))
}

// FeedbackSubject returns the subject for a feedback event.
func FeedbackSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.feedback", SubjectPrefix, token(sessionID))
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// PublishTurn publishes a chat turn event.
func (p *Publisher) PublishTurn(ctx context.Context, ev *model.TurnEvent) error {
	return p.publish(ctx, "turn", TurnSubject(ev.SessionID, ev.Outcome), ev.ID, ev)
}

// PublishFeedback publishes a feedback event.
func (p *Publisher) PublishFeedback(ctx context.Context, ev *model.FeedbackEvent) error {
	return p.publish(ctx, "feedback", FeedbackSubject(ev.Feedback.SessionID), ev.ID, ev)
}

func (p *Publisher) publish(ctx context.Context, kind, subject, msgID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	// Events outlive the request that produced them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}

	ack, err := p.js.Publish(ctx, subject, data, opts...)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	metrics.EventsPublished.WithLabelValues(kind, "ok").Inc()
	p.logger.Debug("event published",
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
	)
	return nil
}
