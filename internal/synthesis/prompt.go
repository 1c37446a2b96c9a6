package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cropsage/cropsage/internal/models"
)

const systemPrompt = `You are an agronomy assistant producing structured crop diagnoses.
Base every claim on the numbered reference passages you are given and cite them
by chunk id. Respond with a single JSON object and nothing else, matching:
{
  "diagnosis": {
    "condition": string,
    "condition_type": "deficiency" | "disease" | "pest" | "environmental" | "unknown",
    "confidence": number between 0 and 1,
    "reasoning": string
  },
  "recommendations": [
    {
      "action": string,
      "priority": "immediate" | "soon" | "when_convenient",
      "timing": string,
      "details": string,
      "citations": [chunk ids]
    }
  ],
  "products": [
    {"product_id": string, "reason": string, "application_rate": string, "alternatives": [string]}
  ]
}
Give at most 3 recommendations and 4 products. If the evidence is weak, say so
in the reasoning and lower the confidence rather than guessing.`

// buildSystemPrompt returns the fixed instruction block.
func buildSystemPrompt() string {
	return systemPrompt
}

// buildUserPrompt renders the observation, any lab analytes, and the ranked
// evidence passages with their chunk ids.
func buildUserPrompt(input *models.InputSnapshot, candidates []models.RankedCandidate) string {
	var sb strings.Builder

	sb.WriteString("## Observation\n")
	if input.Crop != "" {
		fmt.Fprintf(&sb, "Crop: %s\n", input.Crop)
	}
	if input.GrowthStage != "" {
		fmt.Fprintf(&sb, "Growth stage: %s\n", input.GrowthStage)
	}
	if input.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", input.Location)
	}
	if input.Season != "" {
		fmt.Fprintf(&sb, "Season: %s\n", input.Season)
	}
	fmt.Fprintf(&sb, "Description: %s\n", input.Description)

	if len(input.LabData) > 0 {
		sb.WriteString("\n## Lab results\n")
		keys := make([]string, 0, len(input.LabData))
		for k := range input.LabData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %g\n", k, input.LabData[k])
		}
	}

	sb.WriteString("\n## Reference passages\n")
	if len(candidates) == 0 {
		sb.WriteString("(none retrieved)\n")
	}
	for i, c := range candidates {
		fmt.Fprintf(&sb, "[%d] chunk_id=%s source=%q authority=%.2f\n%s\n\n",
			i+1, c.ChunkID, c.SourceTitle, c.Breakdown.Authority, c.Content)
	}

	sb.WriteString("Produce the JSON diagnosis now.")
	return sb.String()
}
