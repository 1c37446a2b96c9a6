package compliance

import (
	"time"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/models"
)

// Evaluator runs the rule battery and aggregates the worst outcome.
type Evaluator struct {
	thresholds Thresholds
	now        func() time.Time
	logger     *zap.Logger
}

// NewEvaluator creates an evaluator with the given policy thresholds.
func NewEvaluator(th Thresholds, logger *zap.Logger) *Evaluator {
	if th.RuleVersion == "" {
		th.RuleVersion = DefaultThresholds().RuleVersion
	}
	if th.MaxSingleRate <= 0 {
		th.MaxSingleRate = DefaultThresholds().MaxSingleRate
	}
	if th.MaxSeasonalDose <= 0 {
		th.MaxSeasonalDose = DefaultThresholds().MaxSeasonalDose
	}
	return &Evaluator{thresholds: th, now: time.Now, logger: logger}
}

// Evaluate runs every check against the input. Checks run unconditionally
// so the review always carries the full battery, and the overall result is
// the most severe individual outcome.
func (e *Evaluator) Evaluate(in *models.ComplianceInput) *models.RiskReview {
	now := e.now()
	review := &models.RiskReview{
		RecommendationID: in.RecommendationID,
		Decision:         models.OutcomeClearSignal,
		RuleVersion:      e.thresholds.RuleVersion,
		EvaluatedAt:      now,
	}
	for _, c := range checks {
		res := c(in, e.thresholds, now)
		review.Checks = append(review.Checks, res)
		if models.MoreSevere(res.Result, review.Decision) {
			review.Decision = res.Result
		}
	}
	e.logger.Debug("compliance review complete",
		zap.String("recommendation_id", in.RecommendationID),
		zap.String("decision", string(review.Decision)),
		zap.Int("checks", len(review.Checks)))
	return review
}
