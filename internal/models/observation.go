package models

import (
	"fmt"
	"time"
)

// ObservationType identifies what kind of evidence a grower submitted.
type ObservationType string

const (
	ObservationPhoto     ObservationType = "photo"
	ObservationLabReport ObservationType = "lab_report"
	ObservationHybrid    ObservationType = "hybrid"
)

// InputSnapshot is the read-only grower observation the pipeline works from.
// It is owned by the intake surface; the pipeline never mutates it.
type InputSnapshot struct {
	ID          string             `json:"id"`
	Type        ObservationType    `json:"type"`
	Crop        string             `json:"crop,omitempty"`
	Location    string             `json:"location,omitempty"`
	Season      string             `json:"season,omitempty"`
	GrowthStage string             `json:"growth_stage,omitempty"`
	Description string             `json:"description"`
	LabData     map[string]float64 `json:"lab_data,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ImageObservation is a photo observation with caption-derived tags, used to
// link images to the text passage they most plausibly support.
type ImageObservation struct {
	ID       string   `json:"id"`
	Tags     []string `json:"tags"`
	Position *int     `json:"position,omitempty"`
}

// RecommendationRequest asks the pipeline to assemble a recommendation for a
// stored input snapshot.
type RecommendationRequest struct {
	RecommendationID string             `json:"recommendation_id,omitempty"`
	InputID          string             `json:"input_id"`
	Limit            int                `json:"limit,omitempty"`
	Diversify        bool               `json:"diversify,omitempty"`
	Images           []ImageObservation `json:"images,omitempty"`
}

// Validate checks required fields and normalizes the candidate limit.
func (r *RecommendationRequest) Validate() error {
	if r.InputID == "" {
		return fmt.Errorf("input_id is required")
	}
	if r.Limit <= 0 {
		r.Limit = 8
	}
	if r.Limit > 50 {
		r.Limit = 50
	}
	return nil
}
