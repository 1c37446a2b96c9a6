package models

import "testing"

func TestRecommendationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *RecommendationRequest
		wantErr bool
	}{
		{"missing input id", &RecommendationRequest{}, true},
		{"valid request", &RecommendationRequest{InputID: "in1"}, false},
		{"sets default limit", &RecommendationRequest{InputID: "in1", Limit: 0}, false},
		{"caps limit at 50", &RecommendationRequest{InputID: "in1", Limit: 200}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if tt.req.Limit <= 0 {
					t.Error("expected default limit to be set")
				}
				if tt.req.Limit > 50 {
					t.Errorf("expected limit capped at 50, got %d", tt.req.Limit)
				}
			}
		})
	}
}

func TestMoreSevere(t *testing.T) {
	tests := []struct {
		a, b CheckOutcome
		want bool
	}{
		{OutcomePotentialConflict, OutcomeClearSignal, true},
		{OutcomePotentialConflict, OutcomeNeedsManualReview, true},
		{OutcomeNeedsManualReview, OutcomeClearSignal, true},
		{OutcomeClearSignal, OutcomeNeedsManualReview, false},
		{OutcomeClearSignal, OutcomeClearSignal, false},
	}
	for _, tt := range tests {
		if got := MoreSevere(tt.a, tt.b); got != tt.want {
			t.Errorf("MoreSevere(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
