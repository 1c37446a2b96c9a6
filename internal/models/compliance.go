package models

import "time"

// CheckOutcome is the result of one compliance rule check.
type CheckOutcome string

const (
	OutcomeClearSignal        CheckOutcome = "clear_signal"
	OutcomePotentialConflict  CheckOutcome = "potential_conflict"
	OutcomeNeedsManualReview  CheckOutcome = "needs_manual_verification"
)

// CheckSeverity distinguishes hard regulatory checks from advisory ones.
type CheckSeverity string

const (
	SeverityHard CheckSeverity = "hard"
	SeveritySoft CheckSeverity = "soft"
)

// ComplianceCheckResult is one rule's verdict over a product plan and field
// context. Produced fresh per evaluation, never mutated.
type ComplianceCheckResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Result      CheckOutcome      `json:"result"`
	Severity    CheckSeverity     `json:"severity"`
	Message     string            `json:"message"`
	RuleVersion string            `json:"rule_version"`
	Evidence    map[string]string `json:"evidence,omitempty"`
}

// ComplianceInput is the finalized snapshot the rule battery runs over.
type ComplianceInput struct {
	RecommendationID string          `json:"recommendation_id"`
	Crop             string          `json:"crop,omitempty"`
	GrowthStage      string          `json:"growth_stage,omitempty"`
	Location         string          `json:"location,omitempty"`
	Acreage          float64         `json:"acreage,omitempty"`
	PlannedDate      *time.Time      `json:"planned_date,omitempty"`
	Products         []ProductChoice `json:"products"`
}

// RiskReview is the persisted worst-case decision across all checks.
type RiskReview struct {
	RecommendationID string                  `json:"recommendation_id"`
	Decision         CheckOutcome            `json:"decision"`
	Checks           []ComplianceCheckResult `json:"checks"`
	RuleVersion      string                  `json:"rule_version"`
	EvaluatedAt      time.Time               `json:"evaluated_at"`
}

// severityRank orders outcomes from least to most severe.
var severityRank = map[CheckOutcome]int{
	OutcomeClearSignal:       0,
	OutcomeNeedsManualReview: 1,
	OutcomePotentialConflict: 2,
}

// MoreSevere reports whether a is more severe than b.
func MoreSevere(a, b CheckOutcome) bool {
	return severityRank[a] > severityRank[b]
}
