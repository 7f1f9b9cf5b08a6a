package chat

import (
	"strings"

	"github.com/apollo-risk/risk-assistant/internal/model"
)

var icons = map[string]string{
	"warning":   "warning",
	"chart":     "trending_up",
	"building":  "location_city",
	"person":    "person",
	"category":  "category",
	"search":    "search",
	"calendar":  "event",
	"alert":     "notification_important",
	"users":     "groups",
	"dollar":    "attach_money",
	"clipboard": "assignment",
}

// MapIcon translates a model-facing icon key into a display icon name.
// Unknown keys map to the generic help icon.
func MapIcon(key string) string {
	if icon, ok := icons[strings.ToLower(key)]; ok {
		return icon
	}
	return defaultIcon
}

var (
	siteSuggestions = []model.SuggestedQuestion{
		{Text: "What are the highest risks at this site?", Icon: "warning", Category: "Priority"},
		{Text: "Who owns the most risks here?", Icon: "person", Category: "Ownership"},
		{Text: "Compare this site to others", Icon: "compare_arrows", Category: "Analysis"},
	}
	trendSuggestions = []model.SuggestedQuestion{
		{Text: "Which risks have worsened the most?", Icon: "trending_down", Category: "Trends"},
		{Text: "Show me the risk breakdown by category", Icon: "category", Category: "Analysis"},
		{Text: "What needs immediate attention?", Icon: "warning", Category: "Priority"},
	}
	ownerSuggestions = []model.SuggestedQuestion{
		{Text: "Show all risks for this owner", Icon: "person", Category: "Ownership"},
		{Text: "Which owners have the most high risks?", Icon: "warning", Category: "Priority"},
		{Text: "Break down by site", Icon: "location_city", Category: "Analysis"},
	}
	genericSuggestions = []model.SuggestedQuestion{
		{Text: "What risks need immediate attention?", Icon: "warning", Category: "Priority"},
		{Text: "Show me the risk breakdown by site", Icon: "location_city", Category: "Analysis"},
		{Text: "What's the trend over the last 6 months?", Icon: "trending_up", Category: "Trends"},
		{Text: "Who owns the most high-risk items?", Icon: "person", Category: "Ownership"},
	}
)

// defaultRules is checked in order; the first rule with a matching keyword wins.
var defaultRules = []struct {
	keywords    []string
	suggestions []model.SuggestedQuestion
}{
	{[]string{"site", "location"}, siteSuggestions},
	{[]string{"trend", "history", "change"}, trendSuggestions},
	{[]string{"owner", "who"}, ownerSuggestions},
}

// DefaultSuggestions picks a fixed follow-up list from keywords in the user's
// message. It always returns three or four suggestions.
func DefaultSuggestions(userMessage string) []model.SuggestedQuestion {
	lower := strings.ToLower(userMessage)
	for _, rule := range defaultRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return clone(rule.suggestions)
			}
		}
	}
	return clone(genericSuggestions)
}

func clone(in []model.SuggestedQuestion) []model.SuggestedQuestion {
	out := make([]model.SuggestedQuestion, len(in))
	copy(out, in)
	return out
}
