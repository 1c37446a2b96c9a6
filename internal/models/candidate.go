// Package models defines core data structures for observations, retrieved
// passages, synthesized recommendations, and compliance results.
package models

import "time"

// SourceType categorizes the publisher of a reference source. It drives the
// authority component of the rank score.
type SourceType string

const (
	SourceGovernment          SourceType = "government"
	SourceUniversityExtension SourceType = "university_extension"
	SourceResearchPaper       SourceType = "research_paper"
	SourceManufacturer        SourceType = "manufacturer"
	SourceRetailer            SourceType = "retailer"
	SourceOther               SourceType = "other"
)

// PassageMetadata carries optional, typed metadata attached to a passage.
// Every field is independently optional; a nil PassageMetadata is valid.
type PassageMetadata struct {
	Crops     []string   `json:"crops,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	Region    string     `json:"region,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Position  int        `json:"position,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RetrievedCandidate is a reference passage considered for inclusion in a
// recommendation's supporting context. Immutable once retrieved.
type RetrievedCandidate struct {
	ChunkID     string           `json:"chunk_id"`
	SourceID    string           `json:"source_id"`
	Content     string           `json:"content"`
	Similarity  float64          `json:"similarity"`
	SourceType  SourceType       `json:"source_type"`
	SourceTitle string           `json:"source_title"`
	SourceBoost float64          `json:"source_boost,omitempty"`
	Metadata    *PassageMetadata `json:"metadata,omitempty"`
}

// ScoreBreakdown holds the four independent rank components, each in [0,1].
type ScoreBreakdown struct {
	Vector    float64 `json:"vector"`
	Keyword   float64 `json:"keyword"`
	Authority float64 `json:"authority"`
	Metadata  float64 `json:"metadata"`
}

// RankedCandidate is a RetrievedCandidate with its combined rank score.
// RankScore = 0.55*vector + 0.20*keyword + 0.15*authority + 0.10*metadata.
type RankedCandidate struct {
	RetrievedCandidate
	RankScore float64        `json:"rank_score"`
	Breakdown ScoreBreakdown `json:"score_breakdown"`
}

// QueryExpansionResult is the output of query expansion. Terms preserve
// first-seen order and contain no duplicates.
type QueryExpansionResult struct {
	ExpandedQuery string   `json:"expanded_query"`
	Terms         []string `json:"terms"`
}

// ReferenceSource describes an ingested reference document. Only sources in
// StatusReady are visible to retrieval.
type ReferenceSource struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	SourceType SourceType `json:"source_type"`
	Boost      float64    `json:"boost"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Source status values.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Passage is a stored chunk of a reference source, the atomic retrieval unit.
type Passage struct {
	ID         string           `json:"id"`
	SourceID   string           `json:"source_id"`
	Content    string           `json:"content"`
	ChunkIndex int              `json:"chunk_index"`
	TokenCount int              `json:"token_count"`
	Embedding  []float32        `json:"-"`
	Metadata   *PassageMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
