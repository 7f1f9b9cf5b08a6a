// Package llm provides completion clients for the risk assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyCompletion is returned when the provider answers without any text.
	ErrEmptyCompletion = errors.New("llm: empty completion")

	// ErrNotConfigured is returned when a provider is selected without credentials.
	ErrNotConfigured = errors.New("llm: provider not configured")
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model string

	// System is the instruction block sent ahead of the conversation.
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// CompletionError is a provider failure carrying the HTTP status when known.
type CompletionError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider        Provider
	OpenAIKey       string
	OpenAIBaseURL   string
	AnthropicAPIKey string
}

// NewClient creates a new LLM client based on provider.
func NewClient(opts Options) (Client, error) {
	switch opts.Provider {
	case ProviderAnthropic:
		return NewAnthropicClient(opts.AnthropicAPIKey)
	case ProviderOpenAI, "":
		return NewOpenAIClient(opts.OpenAIKey, opts.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
