// Package model defines data structures for the risk assistant.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one entry of a session transcript. Immutable once appended.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SuggestedQuestion is a follow-up question offered after a reply.
type SuggestedQuestion struct {
	Text     string `json:"text"`
	Icon     string `json:"icon"`
	Category string `json:"category"`
}

// ChatRequest is an inbound chat message.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`

	// Optional scoping of the live data the assistant sees.
	SiteID    *int64 `json:"siteId,omitempty"`
	ServiceID *int64 `json:"serviceId,omitempty"`
}

// ChatResponse is the result of one chat turn.
type ChatResponse struct {
	SessionID   string              `json:"sessionId"`
	ReplyText   string              `json:"replyText,omitempty"`
	MessageID   int64               `json:"messageId"`
	Success     bool                `json:"success"`
	Error       string              `json:"error,omitempty"`
	Suggestions []SuggestedQuestion `json:"suggestions,omitempty"`
}

// FeedbackRequest rates a previously returned reply.
type FeedbackRequest struct {
	MessageID    int64  `json:"messageId"`
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId,omitempty"`
	Rating       int    `json:"rating"`
	Category     string `json:"category,omitempty"`
	FeedbackText string `json:"feedbackText,omitempty"`
}

// SessionInfo is a read-only view of a chat session.
type SessionInfo struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	MessageCount   int           `json:"messageCount"`
	Messages       []ChatMessage `json:"messages"`
}
