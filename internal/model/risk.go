package model

import (
	"time"
)

// Scope narrows dashboard and report queries. Nil fields mean "all".
type Scope struct {
	SiteID    *int64
	ServiceID *int64
}

// DashboardSummary is the headline view across all risks in scope.
type DashboardSummary struct {
	TotalRisks      int     `json:"totalRisks" db:"total_risks"`
	HighRiskCount   int     `json:"highRiskCount" db:"high_count"`
	MediumRiskCount int     `json:"mediumRiskCount" db:"medium_count"`
	LowRiskCount    int     `json:"lowRiskCount" db:"low_count"`
	AverageScore    float64 `json:"averageScore" db:"average_score"`
	AggregateScore  float64 `json:"aggregateScore" db:"aggregate_score"`
}

// TopRisk is a risk ranked by its latest score.
type TopRisk struct {
	RiskID         int64    `json:"riskId" db:"risk_id"`
	Name           string   `json:"name" db:"name"`
	SiteName       string   `json:"siteName" db:"site_name"`
	CategoryName   string   `json:"categoryName" db:"category_name"`
	OwnerName      string   `json:"ownerName" db:"owner_name"`
	Score          float64  `json:"score" db:"score"`
	RAGRating      string   `json:"ragRating" db:"rag_rating"`
	Variance       *float64 `json:"variance,omitempty" db:"variance"`
	TrendDirection string   `json:"trendDirection" db:"trend_direction"`
}

// WatchlistItem is a risk flagged for closer monitoring.
type WatchlistItem struct {
	RiskID    int64   `json:"riskId" db:"risk_id"`
	Name      string  `json:"name" db:"name"`
	SiteName  string  `json:"siteName" db:"site_name"`
	Score     float64 `json:"score" db:"score"`
	RAGRating string  `json:"ragRating" db:"rag_rating"`
	Reason    string  `json:"reason,omitempty" db:"reason"`
}

// TrendPoint aggregates score entries for one calendar month.
type TrendPoint struct {
	Month           time.Time `json:"month"`
	AverageScore    float64   `json:"averageScore"`
	HighRiskCount   int       `json:"highRiskCount"`
	MediumRiskCount int       `json:"mediumRiskCount"`
	LowRiskCount    int       `json:"lowRiskCount"`
}

// GroupSummary aggregates risks grouped by site, category or owner.
type GroupSummary struct {
	ID           int64   `json:"id" db:"group_id"`
	Name         string  `json:"name" db:"group_name"`
	TotalRisks   int     `json:"totalRisks" db:"total_risks"`
	HighRisk     int     `json:"highRisk" db:"high_count"`
	MediumRisk   int     `json:"mediumRisk" db:"medium_count"`
	LowRisk      int     `json:"lowRisk" db:"low_count"`
	AverageScore float64 `json:"averageScore" db:"average_score"`
}

// Site is a physical location risks are recorded against.
type Site struct {
	ID         int64  `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	DomainName string `json:"domainName,omitempty" db:"domain_name"`
}

// Service is a line of business risks belong to.
type Service struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Category is a risk category.
type Category struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	ServiceName string `json:"serviceName,omitempty" db:"service_name"`
}

// User is a person who can own risks or enter scores.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	RoleName string `json:"roleName,omitempty" db:"role_name"`
}

// RiskScore is one recorded score for a risk.
type RiskScore struct {
	ID         int64     `json:"id" db:"id"`
	RiskID     int64     `json:"riskId" db:"risk_id"`
	RatingDate time.Time `json:"ratingDate" db:"rating_date"`
	Score      float64   `json:"score" db:"numeric_score"`
	RAGRating  string    `json:"ragRating" db:"rating_value"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	EnteredBy  int64     `json:"enteredBy" db:"entered_by"`
	EnteredAt  time.Time `json:"enteredAt" db:"entered_at"`
}

// AddRiskScoreRequest records a new score for a risk.
type AddRiskScoreRequest struct {
	RiskID     int64     `json:"-"`
	RatingDate time.Time `json:"ratingDate"`
	Score      float64   `json:"score"`
	RAGRating  string    `json:"ragRating"`
	Notes      string    `json:"notes,omitempty"`
	EnteredBy  int64     `json:"enteredBy"`
}
