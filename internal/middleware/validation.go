package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

const (
	// MaxMessageLength bounds a chat message in bytes.
	MaxMessageLength = 8000

	// MaxFeedbackLength bounds free-text feedback in bytes.
	MaxFeedbackLength = 4000

	// MaxNotesLength bounds score notes in bytes.
	MaxNotesLength = 2000
)

// ValidateMessageContent validates chat message text.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > MaxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateChatRequest validates an inbound chat request. Session ids are not
// checked; unknown or malformed ids simply start a new session.
func ValidateChatRequest(req *model.ChatRequest) error {
	if err := ValidateMessageContent(req.Message); err != nil {
		return err
	}
	if req.SiteID != nil && *req.SiteID <= 0 {
		return errors.New("siteId must be positive")
	}
	if req.ServiceID != nil && *req.ServiceID <= 0 {
		return errors.New("serviceId must be positive")
	}
	return nil
}

// ValidateFeedback bounds free-text fields only. Message and session ids are
// accepted without lookup.
func ValidateFeedback(req *model.FeedbackRequest) error {
	if len(req.FeedbackText) > MaxFeedbackLength {
		return errors.New("feedbackText exceeds maximum length")
	}
	if len(req.Category) > 64 {
		return errors.New("category exceeds maximum length")
	}
	if !utf8.ValidString(req.FeedbackText) || !utf8.ValidString(req.Category) {
		return errors.New("feedback must be valid UTF-8")
	}
	return nil
}

// ValidateScoreRequest checks the shape of a score entry. Range, author and
// rating vocabulary checks are left to the store.
func ValidateScoreRequest(req *model.AddRiskScoreRequest) error {
	if req.RiskID <= 0 {
		return errors.New("invalid risk id")
	}
	if len(req.Notes) > MaxNotesLength {
		return errors.New("notes exceed maximum length")
	}
	return nil
}
