package synthesis

import (
	"strings"
	"testing"
)

const sampleJSON = `{"diagnosis":{"condition":"Iron deficiency","condition_type":"deficiency","confidence":0.8,"reasoning":"r"},"recommendations":[{"action":"apply chelated iron","priority":"soon","details":"d","citations":["c-1"]}]}`

func TestExtractJSONBare(t *testing.T) {
	got, err := extractJSON(sampleJSON)
	if err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if got != sampleJSON {
		t.Errorf("bare object was altered")
	}
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here is the diagnosis:\n```json\n" + sampleJSON + "\n```\nLet me know."
	got, err := extractJSON(raw)
	if err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if got != sampleJSON {
		t.Errorf("fenced object not extracted cleanly:\n%s", got)
	}
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := "Based on the symptoms, " + sampleJSON + " as requested."
	got, err := extractJSON(raw)
	if err != nil {
		t.Fatalf("extractJSON: %v", err)
	}
	if !strings.HasPrefix(got, "{") || !strings.HasSuffix(got, "}") {
		t.Errorf("extracted text is not an object: %s", got)
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken"} {
		if _, err := extractJSON(raw); err == nil {
			t.Errorf("extractJSON(%q) expected error", raw)
		}
	}
}

func TestParseOutput(t *testing.T) {
	out, err := parseOutput(sampleJSON)
	if err != nil {
		t.Fatalf("parseOutput: %v", err)
	}
	if out.Diagnosis.Condition != "Iron deficiency" {
		t.Errorf("condition = %q", out.Diagnosis.Condition)
	}
	if len(out.Recommendations) != 1 || out.Recommendations[0].Action != "apply chelated iron" {
		t.Errorf("recommendations = %+v", out.Recommendations)
	}
}

func TestParseOutputRejectsEmptyObject(t *testing.T) {
	if _, err := parseOutput(`{}`); err == nil {
		t.Error("expected error for an empty diagnosis object")
	}
}
