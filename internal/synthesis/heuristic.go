package synthesis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// heuristicRule classifies an observation by keyword. Rules are checked in
// order and the first match wins.
type heuristicRule struct {
	pattern   *regexp.Regexp
	condition string
	condType  models.ConditionType
	action    string
	timing    string
}

var heuristicRules = []heuristicRule{
	{
		pattern:   regexp.MustCompile(`deficien|chloro|yellowing|interveinal|stunt`),
		condition: "Suspected nutrient deficiency",
		condType:  models.ConditionDeficiency,
		action:    "Confirm with tissue or soil testing before corrective fertilization",
		timing:    "within 7 days",
	},
	{
		pattern:   regexp.MustCompile(`pest|insect|mite|aphid|larva|worm|beetle`),
		condition: "Suspected pest pressure",
		condType:  models.ConditionPest,
		action:    "Scout affected areas and identify the pest before selecting a control",
		timing:    "within 3 days",
	},
	{
		pattern:   regexp.MustCompile(`drought|heat|frost|hail|wind|waterlog|flood|scorch`),
		condition: "Suspected environmental stress",
		condType:  models.ConditionEnvironmental,
		action:    "Review recent weather and irrigation records against symptom onset",
		timing:    "as soon as practical",
	},
	{
		pattern:   regexp.MustCompile(`disease|lesion|blight|fungal|rust|rot|spot|mildew|wilt`),
		condition: "Suspected disease",
		condType:  models.ConditionDisease,
		action:    "Collect samples for laboratory diagnosis and watch for spread",
		timing:    "within 3 days",
	},
}

// heuristicConfidence is the confidence assigned to keyword-derived
// diagnoses. It sits at the normalization floor on purpose: a keyword match
// should never read as more certain than a model assessment.
const heuristicConfidence = 0.5

// Heuristic builds a deterministic diagnosis from the observation text
// alone. It always returns a usable output, so it is the fallback for every
// model failure mode.
func Heuristic(input *models.InputSnapshot, candidates []models.RankedCandidate) *models.SynthesizedOutput {
	text := strings.ToLower(input.Description)

	out := &models.SynthesizedOutput{
		Diagnosis: models.Diagnosis{
			Condition:     "Undetermined condition",
			ConditionType: models.ConditionUnknown,
			Confidence:    heuristicConfidence,
			Reasoning:     "No diagnostic keyword matched the observation; manual review advised.",
		},
	}

	var matched *heuristicRule
	for i := range heuristicRules {
		if heuristicRules[i].pattern.MatchString(text) {
			matched = &heuristicRules[i]
			break
		}
	}
	if matched != nil {
		out.Diagnosis.Condition = matched.condition
		out.Diagnosis.ConditionType = matched.condType
		out.Diagnosis.Reasoning = fmt.Sprintf("Observation text matched the %s keyword profile.", matched.condType)
		out.Recommendations = append(out.Recommendations, models.Recommendation{
			Action:    matched.action,
			Priority:  models.PrioritySoon,
			Timing:    matched.timing,
			Details:   heuristicDetails(candidates),
			Citations: topCitations(candidates, 1),
		})
	} else {
		out.Recommendations = append(out.Recommendations, models.Recommendation{
			Action:    "Consult a local agronomist with photos and field history",
			Priority:  models.PrioritySoon,
			Details:   heuristicDetails(candidates),
			Citations: topCitations(candidates, 1),
		})
	}
	return out
}

func heuristicDetails(candidates []models.RankedCandidate) string {
	if len(candidates) == 0 {
		return "No reference material was retrieved for this observation."
	}
	top := candidates[0]
	return fmt.Sprintf("Closest reference: %s. %s",
		top.SourceTitle, utils.Truncate(top.Content, 200))
}

func topCitations(candidates []models.RankedCandidate, n int) []string {
	ids := []string{}
	for i := 0; i < len(candidates) && i < n; i++ {
		ids = append(ids, candidates[i].ChunkID)
	}
	return ids
}
