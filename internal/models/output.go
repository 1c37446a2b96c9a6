package models

import "time"

// ConditionType classifies the diagnosed condition.
type ConditionType string

const (
	ConditionDeficiency    ConditionType = "deficiency"
	ConditionDisease       ConditionType = "disease"
	ConditionPest          ConditionType = "pest"
	ConditionEnvironmental ConditionType = "environmental"
	ConditionUnknown       ConditionType = "unknown"
)

// Priority orders recommended actions by urgency.
type Priority string

const (
	PriorityImmediate      Priority = "immediate"
	PrioritySoon           Priority = "soon"
	PriorityWhenConvenient Priority = "when_convenient"
)

// Diagnosis is the condition assessment inside a synthesized output.
// Confidence is always within [0.5, 0.95] after normalization.
type Diagnosis struct {
	Condition     string        `json:"condition"`
	ConditionType ConditionType `json:"condition_type"`
	Confidence    float64       `json:"confidence"`
	Reasoning     string        `json:"reasoning"`
}

// Recommendation is a single advised action. After normalization it always
// carries at least one citation when any candidate was supplied.
type Recommendation struct {
	Action    string   `json:"action"`
	Priority  Priority `json:"priority"`
	Timing    string   `json:"timing,omitempty"`
	Details   string   `json:"details"`
	Citations []string `json:"citations"`
}

// ProductChoice names a product the plan applies, with an optional label rate.
type ProductChoice struct {
	ProductID       string   `json:"product_id"`
	Reason          string   `json:"reason"`
	ApplicationRate string   `json:"application_rate,omitempty"`
	Alternatives    []string `json:"alternatives,omitempty"`
}

// SynthesizedOutput is a normalized structured diagnosis, either model-derived
// or produced by the deterministic heuristic.
type SynthesizedOutput struct {
	Diagnosis       Diagnosis        `json:"diagnosis"`
	Recommendations []Recommendation `json:"recommendations"`
	Products        []ProductChoice  `json:"products"`
}

// SourceRef points a recommendation back at a supporting passage.
type SourceRef struct {
	ChunkID   string  `json:"chunk_id"`
	Relevance float64 `json:"relevance"`
	Excerpt   string  `json:"excerpt"`
}

// ImageLink ties a photo observation to the passage that most plausibly
// explains it.
type ImageLink struct {
	ImageID string  `json:"image_id"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// RecommendationResult is the finished pipeline artifact. It is created once
// per run and never mutated afterwards.
type RecommendationResult struct {
	RecommendationID string            `json:"recommendation_id"`
	InputID          string            `json:"input_id"`
	Confidence       float64           `json:"confidence"`
	Diagnosis        SynthesizedOutput `json:"diagnosis"`
	Sources          []SourceRef       `json:"sources"`
	ImageLinks       []ImageLink       `json:"image_links,omitempty"`
	ModelUsed        string            `json:"model_used"`
	CreatedAt        time.Time         `json:"created_at"`
}

// RetrievalAudit is the append-only record of what one run retrieved, what it
// cited, and what it considered but did not cite.
type RetrievalAudit struct {
	RecommendationID string          `json:"recommendation_id"`
	Query            string          `json:"query"`
	Terms            []string        `json:"terms"`
	Candidates       []AuditedChunk  `json:"candidates"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AuditedChunk is one candidate row inside a retrieval audit.
type AuditedChunk struct {
	ChunkID     string  `json:"chunk_id"`
	Similarity  float64 `json:"similarity"`
	RankScore   float64 `json:"rank_score"`
	Authority   float64 `json:"authority"`
	SourceBoost float64 `json:"source_boost"`
	CropMatch   bool    `json:"crop_match"`
	TermDensity float64 `json:"term_density"`
	ChunkPos    int     `json:"chunk_pos"`
	Cited       bool    `json:"cited"`
	Feedback    int     `json:"feedback"`
}
