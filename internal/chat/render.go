package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apollo-risk/risk-assistant/internal/model"
	"github.com/apollo-risk/risk-assistant/internal/rating"
)

// ContextSnapshot is the live data one chat turn is grounded in. A nil field
// means the fetch failed or returned nothing; either way its section is left
// out of the rendered block.
type ContextSnapshot struct {
	Summary    *model.DashboardSummary
	TopRisks   []model.TopRisk
	Sites      []model.GroupSummary
	Categories []model.GroupSummary
	Owners     []model.GroupSummary
	Watchlist  []model.WatchlistItem
	Trend      []model.TrendPoint

	// TrendMonths is the window Trend was fetched for.
	TrendMonths int

	SiteList     []model.Site
	ServiceList  []model.Service
	CategoryList []model.Category
	UserList     []model.User
}

// SystemPrompt is the full system instruction for one turn: the static
// template followed by the rendered data block.
func SystemPrompt(snap ContextSnapshot, now time.Time) string {
	return Instructions(now) + Render(snap)
}

// Render formats the snapshot as a data block. Sections appear in a fixed
// order and empty ones are omitted. Rating labels are shown in their
// canonical RAG colour.
func Render(snap ContextSnapshot) string {
	var b strings.Builder

	b.WriteString("=== CURRENT RISK DATA ===\n\n")

	if s := snap.Summary; s != nil {
		b.WriteString("## Overall Summary:\n")
		fmt.Fprintf(&b, "- Total Risks: %d\n", s.TotalRisks)
		fmt.Fprintf(&b, "- High Risk (Red): %d\n", s.HighRiskCount)
		fmt.Fprintf(&b, "- Medium Risk (Amber): %d\n", s.MediumRiskCount)
		fmt.Fprintf(&b, "- Low Risk (Green): %d\n", s.LowRiskCount)
		fmt.Fprintf(&b, "- Average Score: %.1f\n", s.AverageScore)
		fmt.Fprintf(&b, "- Aggregate Score: %.1f\n\n", s.AggregateScore)
	}

	if len(snap.TopRisks) > 0 {
		fmt.Fprintf(&b, "## Top %d Highest Risks:\n", len(snap.TopRisks))
		for _, r := range snap.TopRisks {
			fmt.Fprintf(&b, "- %s (Site: %s, Category: %s, Owner: %s, Score: %.1f, RAG: %s",
				r.Name, r.SiteName, r.CategoryName, r.OwnerName, r.Score, ragLabel(r.RAGRating))
			if r.Variance != nil {
				fmt.Fprintf(&b, ", Variance: %+.1f", *r.Variance)
			}
			b.WriteString(")\n")
		}
		b.WriteString("\n")
	}

	renderGroups(&b, "Site", snap.Sites)
	renderGroups(&b, "Category", snap.Categories)
	renderGroups(&b, "Owner", snap.Owners)

	if len(snap.Watchlist) > 0 {
		b.WriteString("## Watchlist Items:\n")
		for _, w := range snap.Watchlist {
			fmt.Fprintf(&b, "- %s (Site: %s, Score: %.1f, RAG: %s)\n",
				w.Name, w.SiteName, w.Score, ragLabel(w.RAGRating))
		}
		b.WriteString("\n")
	}

	renderList(&b, "Available Sites", names(snap.SiteList, func(s model.Site) string { return s.Name }))
	renderList(&b, "Available Services", names(snap.ServiceList, func(s model.Service) string { return s.Name }))
	renderList(&b, "Risk Categories", names(snap.CategoryList, func(c model.Category) string { return c.Name }))

	if len(snap.Trend) > 0 {
		trend := make([]model.TrendPoint, len(snap.Trend))
		copy(trend, snap.Trend)
		sort.SliceStable(trend, func(i, j int) bool { return trend[i].Month.Before(trend[j].Month) })

		months := snap.TrendMonths
		if months <= 0 {
			months = len(trend)
		}
		fmt.Fprintf(&b, "## Risk Trend (Last %d Months):\n", months)
		for _, t := range trend {
			total := t.HighRiskCount + t.MediumRiskCount + t.LowRiskCount
			fmt.Fprintf(&b, "- %s: High=%d, Medium=%d, Low=%d, Total=%d, Avg=%.1f\n",
				t.Month.Format("Jan 2006"), t.HighRiskCount, t.MediumRiskCount, t.LowRiskCount, total, t.AverageScore)
		}
		b.WriteString("\n")
	}

	b.WriteString("=== END OF DATA ===\n")
	return b.String()
}

func renderGroups(b *strings.Builder, kind string, groups []model.GroupSummary) {
	if len(groups) == 0 {
		return
	}
	fmt.Fprintf(b, "## Risk by %s:\n", kind)
	for _, g := range groups {
		fmt.Fprintf(b, "- %s: %d risks (High: %d, Medium: %d, Low: %d, Avg: %.1f)\n",
			g.Name, g.TotalRisks, g.HighRisk, g.MediumRisk, g.LowRisk, g.AverageScore)
	}
	b.WriteString("\n")
}

func renderList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s: %s\n\n", heading, strings.Join(items, ", "))
}

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := name(it); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func ragLabel(label string) string {
	normalized, ok := rating.Normalize(label)
	if !ok {
		return normalized
	}
	return rating.Indicator(normalized) + " " + normalized
}
