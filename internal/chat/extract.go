package chat

import (
	"regexp"
	"strings"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

const (
	SuggestionsStart = "---SUGGESTIONS---"
	SuggestionsEnd   = "---END_SUGGESTIONS---"

	defaultIcon     = "help_outline"
	generalCategory = "general"
)

var (
	startPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(SuggestionsStart))
	endPattern   = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(SuggestionsEnd))
	linePattern  = regexp.MustCompile(`\[icon:(\w+)\]\s*(.+)`)
)

// Extract splits a raw model reply into display text and the suggested
// questions from its suggestions block. Without a complete block the input
// comes back unchanged with no suggestions.
func Extract(raw string) (string, []model.SuggestedQuestion) {
	start, end, body, ok := findBlock(raw)
	if !ok {
		return raw, nil
	}

	cleaned := strings.TrimSpace(raw[:start] + raw[end:])
	return cleaned, parseSuggestions(body)
}

// findBlock locates the first start sentinel and the first end sentinel
// after it. start and end bound the whole region, sentinels included.
func findBlock(raw string) (start, end int, body string, ok bool) {
	open := startPattern.FindStringIndex(raw)
	if open == nil {
		return 0, 0, "", false
	}

	closing := endPattern.FindStringIndex(raw[open[1]:])
	if closing == nil {
		return 0, 0, "", false
	}

	bodyEnd := open[1] + closing[0]
	return open[0], open[1] + closing[1], raw[open[1]:bodyEnd], true
}

// parseSuggestions turns each non-empty line of a block body into a
// suggestion. Lines without an icon tag fall back to the generic icon.
func parseSuggestions(body string) []model.SuggestedQuestion {
	var out []model.SuggestedQuestion
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := linePattern.FindStringSubmatch(line); m != nil {
			text := strings.TrimSpace(m[2])
			if text == "" {
				continue
			}
			out = append(out, model.SuggestedQuestion{
				Text:     text,
				Icon:     MapIcon(m[1]),
				Category: m[1],
			})
			continue
		}

		text := strings.TrimSpace(strings.TrimLeft(line, "-* "))
		if text == "" {
			continue
		}
		out = append(out, model.SuggestedQuestion{
			Text:     text,
			Icon:     defaultIcon,
			Category: generalCategory,
		})
	}
	return out
}
