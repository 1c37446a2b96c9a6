package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cropsage/cropsage/internal/models"
)

// extractJSON pulls the first JSON object out of a model response. Models
// often wrap the object in prose or a markdown code fence, so the scan
// tolerates both and falls back to the outermost brace pair.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty response")
	}

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if strings.HasPrefix(rest, "json") {
			rest = rest[4:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	s = s[start : end+1]
	if !json.Valid([]byte(s)) {
		return "", fmt.Errorf("response JSON is malformed")
	}
	return s, nil
}

// parseOutput decodes a model response into a synthesized output. Unknown
// fields are ignored so newer model templates stay compatible.
func parseOutput(raw string) (*models.SynthesizedOutput, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out models.SynthesizedOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decoding synthesized output: %w", err)
	}
	if out.Diagnosis.Condition == "" && len(out.Recommendations) == 0 {
		return nil, fmt.Errorf("response carried no diagnosis or recommendations")
	}
	return &out, nil
}
