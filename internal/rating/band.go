// Package rating owns the severity-band vocabulary. Every report and
// renderer classifies rating labels through this package.
package rating

import (
	"strings"
)

// Band is one of the three fixed severity bands.
type Band string

const (
	High   Band = "high"
	Medium Band = "medium"
	Low    Band = "low"
)

// Bands lists the bands in display order.
var Bands = []Band{High, Medium, Low}

// synonyms maps each band to the labels records may carry for it.
var synonyms = map[Band][]string{
	High:   {"Red", "High", "Extreme"},
	Medium: {"Amber", "Moderate", "Medium"},
	Low:    {"Green", "Low"},
}

// Synonyms returns the labels that classify as b.
func Synonyms(b Band) []string {
	out := make([]string, len(synonyms[b]))
	copy(out, synonyms[b])
	return out
}

// Classify maps a free-form rating label to its band. Matching ignores case
// and surrounding whitespace.
func Classify(label string) (Band, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, b := range Bands {
		for _, s := range synonyms[b] {
			if strings.EqualFold(label, s) {
				return b, true
			}
		}
	}
	return "", false
}

// Canonical returns the RAG colour label stored for b.
func (b Band) Canonical() string {
	switch b {
	case High:
		return "Red"
	case Medium:
		return "Amber"
	case Low:
		return "Green"
	}
	return ""
}

// Normalize rewrites label to the canonical RAG colour. Unknown labels are
// returned trimmed and unchanged with ok=false.
func Normalize(label string) (string, bool) {
	b, ok := Classify(label)
	if !ok {
		return strings.TrimSpace(label), false
	}
	return b.Canonical(), true
}

// Indicator returns the status marker used when rendering a label.
func Indicator(label string) string {
	b, ok := Classify(label)
	if !ok {
		return ""
	}
	switch b {
	case High:
		return "🔴"
	case Medium:
		return "⚠️"
	default:
		return "✅"
	}
}

// ForScore derives a band from a numeric score using the default thresholds
// (green up to 3.9, amber up to 6.9, red above).
func ForScore(score float64) Band {
	switch {
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	default:
		return Low
	}
}
