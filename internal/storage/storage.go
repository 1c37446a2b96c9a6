// Package storage provides SQLite-backed persistence for reference sources,
// passages, input snapshots, recommendation records, and the ingest queue.
package storage

import (
	"context"
	"errors"

	"github.com/cropsage/cropsage/internal/models"
)

// ErrNotFound is returned when a requested row does not exist. Callers
// should test with errors.Is.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface the pipeline and server depend on.
type Store interface {
	// Reference sources.
	CreateSource(ctx context.Context, src *models.ReferenceSource) error
	GetSource(ctx context.Context, id string) (*models.ReferenceSource, error)
	UpdateSourceStatus(ctx context.Context, id, status string) error
	ListSources(ctx context.Context, offset, limit int) ([]*models.ReferenceSource, error)
	DeleteSource(ctx context.Context, id string) error

	// Passages.
	BatchCreatePassages(ctx context.Context, passages []*models.Passage) error
	GetPassage(ctx context.Context, id string) (*models.Passage, error)
	GetPassagesBySource(ctx context.Context, sourceID string) ([]*models.Passage, error)
	ListReadyPassages(ctx context.Context) ([]*models.Passage, error)
	DeletePassagesBySource(ctx context.Context, sourceID string) error
	CountPassages(ctx context.Context) (int64, error)

	// Input snapshots.
	CreateSnapshot(ctx context.Context, snap *models.InputSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.InputSnapshot, error)

	// Recommendation results.
	SaveResult(ctx context.Context, result *models.RecommendationResult) error
	GetResult(ctx context.Context, recommendationID string) (*models.RecommendationResult, error)

	// Retrieval audits. Audits are append-only: one row per recommendation,
	// never rewritten after creation except for citation feedback.
	CreateAudit(ctx context.Context, audit *models.RetrievalAudit) error
	GetAudit(ctx context.Context, recommendationID string) (*models.RetrievalAudit, error)
	AuditExists(ctx context.Context, recommendationID string) (bool, error)
	ListAudits(ctx context.Context, offset, limit int) ([]*models.RetrievalAudit, error)
	SetAuditFeedback(ctx context.Context, recommendationID, chunkID string, feedback int) error

	// Compliance reviews. Re-evaluation replaces the stored review.
	SaveReview(ctx context.Context, review *models.RiskReview) error
	GetReview(ctx context.Context, recommendationID string) (*models.RiskReview, error)

	// Ingest job queue.
	EnqueueJob(ctx context.Context, job *Job) error
	DequeueJobs(ctx context.Context, batch int) ([]*Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, maxAttempts int) error

	Close() error
}
