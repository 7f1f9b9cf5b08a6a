// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMCompletionDuration tracks completion call latency.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion call duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ChatTurnsTotal counts chat turns by outcome.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns handled, by outcome",
		},
		[]string{"outcome"},
	)

	// SuggestionsTotal counts where a reply's suggestions came from.
	SuggestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_suggestions_total",
			Help: "Suggestion lists returned, by source",
		},
		[]string{"source"},
	)

	// ContextSectionFailures counts Data Store fetches that failed during context assembly.
	ContextSectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_context_section_failures_total",
			Help: "Context sections omitted because the fetch failed",
		},
		[]string{"section"},
	)

	// SessionsActive tracks sessions currently held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Chat sessions held in memory",
		},
	)

	// SessionsEvicted counts sessions dropped from memory, by reason.
	SessionsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sessions_evicted_total",
			Help: "Chat sessions evicted",
		},
		[]string{"reason"},
	)

	// FeedbackTotal counts feedback submissions by rating.
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_feedback_total",
			Help: "Feedback submissions received",
		},
		[]string{"rating"},
	)

	// EventsPublished counts JetStream publishes by kind and result.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_published_total",
			Help: "Chat events published to NATS",
		},
		[]string{"kind", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for one completion call.
func RecordCompletion(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMCompletionDuration.WithLabelValues(provider, status).Observe(duration)
	if model == "" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
