package synthesis

import (
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Output shape limits. Anything past these caps is trimmed in rank order.
const (
	maxRecommendations = 3
	maxProducts        = 4
	maxCitations       = 3

	minConfidence = 0.5
	maxConfidence = 0.95
)

var validConditionTypes = map[models.ConditionType]bool{
	models.ConditionDeficiency:    true,
	models.ConditionDisease:       true,
	models.ConditionPest:          true,
	models.ConditionEnvironmental: true,
	models.ConditionUnknown:       true,
}

var validPriorities = map[models.Priority]bool{
	models.PriorityImmediate:      true,
	models.PrioritySoon:           true,
	models.PriorityWhenConvenient: true,
}

// Normalize repairs a model-produced output field by field, borrowing from
// the heuristic fallback wherever the model left a hole. A nil raw output
// returns the fallback wholesale. The result always satisfies the shape
// limits and carries only citations that name real retrieved chunks.
func Normalize(raw, fallback *models.SynthesizedOutput, candidates []models.RankedCandidate) *models.SynthesizedOutput {
	if raw == nil {
		return clampOutput(fallback, candidates)
	}

	out := &models.SynthesizedOutput{
		Diagnosis:       mergeDiagnosis(raw.Diagnosis, fallback.Diagnosis),
		Recommendations: raw.Recommendations,
		Products:        raw.Products,
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = fallback.Recommendations
	}
	return clampOutput(out, candidates)
}

// mergeDiagnosis takes each diagnosis field from the model where present and
// valid, and from the heuristic baseline where not. The merge is per field:
// a model that names the condition but forgets its reasoning keeps the
// condition and borrows the reasoning.
func mergeDiagnosis(raw, fallback models.Diagnosis) models.Diagnosis {
	merged := raw
	if merged.Condition == "" {
		merged.Condition = fallback.Condition
	}
	if !validConditionTypes[merged.ConditionType] {
		merged.ConditionType = fallback.ConditionType
	}
	if merged.Confidence <= 0 {
		merged.Confidence = fallback.Confidence
	}
	if merged.Reasoning == "" {
		merged.Reasoning = fallback.Reasoning
	}
	return merged
}

func clampOutput(out *models.SynthesizedOutput, candidates []models.RankedCandidate) *models.SynthesizedOutput {
	if !validConditionTypes[out.Diagnosis.ConditionType] {
		out.Diagnosis.ConditionType = models.ConditionUnknown
	}
	out.Diagnosis.Confidence = utils.Clamp(out.Diagnosis.Confidence, minConfidence, maxConfidence)

	if len(out.Recommendations) > maxRecommendations {
		out.Recommendations = out.Recommendations[:maxRecommendations]
	}
	for i := range out.Recommendations {
		rec := &out.Recommendations[i]
		if !validPriorities[rec.Priority] {
			rec.Priority = models.PrioritySoon
		}
		rec.Citations = validCitations(rec.Citations, candidates)
		if len(rec.Citations) == 0 && len(candidates) > 0 {
			rec.Citations = []string{candidates[0].ChunkID}
		}
	}

	if len(out.Products) > maxProducts {
		out.Products = out.Products[:maxProducts]
	}
	return out
}

// validCitations keeps citations that name a retrieved chunk, in their
// original order, capped and deduplicated.
func validCitations(citations []string, candidates []models.RankedCandidate) []string {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ChunkID] = true
	}
	kept := []string{}
	seen := map[string]bool{}
	for _, id := range citations {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
		if len(kept) == maxCitations {
			break
		}
	}
	return kept
}
