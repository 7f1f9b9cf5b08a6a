package model

import (
	"time"
)

// TurnOutcome classifies how a chat turn ended.
type TurnOutcome string

const (
	TurnOutcomeSuccess TurnOutcome = "success"
	TurnOutcomeFailure TurnOutcome = "failure"
)

// TurnEvent is published after every chat turn.
type TurnEvent struct {
	ID               string      `json:"id"`
	SessionID        string      `json:"session_id"`
	UserID           string      `json:"user_id"`
	MessageID        int64       `json:"message_id,omitempty"`
	Outcome          TurnOutcome `json:"outcome"`
	SuggestionSource string      `json:"suggestion_source,omitempty"`
	Model            string      `json:"model,omitempty"`
	TokensIn         int         `json:"tokens_in,omitempty"`
	TokensOut        int         `json:"tokens_out,omitempty"`
	LatencyMs        int64       `json:"latency_ms"`
	CreatedAt        time.Time   `json:"created_at"`
}

// FeedbackEvent is published for every feedback submission.
type FeedbackEvent struct {
	ID        string          `json:"id"`
	Feedback  FeedbackRequest `json:"feedback"`
	CreatedAt time.Time       `json:"created_at"`
}
