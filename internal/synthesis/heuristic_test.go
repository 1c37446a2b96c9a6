package synthesis

import (
	"testing"

	"github.com/cropsage/cropsage/internal/models"
)

func TestHeuristicClassification(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        models.ConditionType
	}{
		{"interveinal chlorosis", "interveinal chlorosis on lower corn leaves", models.ConditionDeficiency},
		{"yellowing", "yellowing leaves spreading upward", models.ConditionDeficiency},
		{"aphids", "small aphid colonies on the underside of leaves", models.ConditionPest},
		{"drought", "leaf rolling after two weeks of drought", models.ConditionEnvironmental},
		{"lesions", "brown lesions with yellow halos on leaves", models.ConditionDisease},
		{"no keyword", "plants look a bit off this week", models.ConditionUnknown},
		{"empty", "", models.ConditionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &models.InputSnapshot{ID: "in-1", Description: tt.description}
			out := Heuristic(in, nil)
			if out.Diagnosis.ConditionType != tt.want {
				t.Errorf("condition type = %s, want %s", out.Diagnosis.ConditionType, tt.want)
			}
			if len(out.Recommendations) == 0 {
				t.Error("heuristic output has no recommendations")
			}
		})
	}
}

func TestHeuristicConfidenceAtFloor(t *testing.T) {
	in := &models.InputSnapshot{ID: "in-1", Description: "interveinal chlorosis"}
	out := Heuristic(in, nil)
	if out.Diagnosis.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", out.Diagnosis.Confidence)
	}
}

func TestHeuristicFirstRuleWins(t *testing.T) {
	// Mentions both a deficiency and a disease keyword; the deficiency rule
	// is checked first.
	in := &models.InputSnapshot{ID: "in-1", Description: "chlorosis and leaf spot together"}
	out := Heuristic(in, nil)
	if out.Diagnosis.ConditionType != models.ConditionDeficiency {
		t.Errorf("condition type = %s, want %s", out.Diagnosis.ConditionType, models.ConditionDeficiency)
	}
}

func TestHeuristicCitesTopCandidate(t *testing.T) {
	in := &models.InputSnapshot{ID: "in-1", Description: "interveinal chlorosis"}
	cands := []models.RankedCandidate{
		{RetrievedCandidate: models.RetrievedCandidate{ChunkID: "c-top", SourceTitle: "Iron Deficiency Guide", Content: "Interveinal chlorosis usually indicates iron or magnesium deficiency."}},
		{RetrievedCandidate: models.RetrievedCandidate{ChunkID: "c-2", SourceTitle: "Other", Content: "other"}},
	}
	out := Heuristic(in, cands)
	rec := out.Recommendations[0]
	if len(rec.Citations) != 1 || rec.Citations[0] != "c-top" {
		t.Errorf("citations = %v, want [c-top]", rec.Citations)
	}
}
