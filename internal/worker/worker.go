// Package worker drains the job queue in the background so uploads, watcher
// events, and queued recommendation requests never block their callers on
// extraction, embedding, or synthesis.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/ingest"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/pipeline"
	"github.com/cropsage/cropsage/internal/storage"
)

// IngestPayload is the JSON body of an ingest_file job.
type IngestPayload struct {
	Path       string            `json:"path"`
	Title      string            `json:"title,omitempty"`
	SourceType models.SourceType `json:"source_type,omitempty"`
	Boost      float64           `json:"boost,omitempty"`
}

// Config tunes the worker loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Worker polls the job queue and runs ingest and recommendation jobs.
type Worker struct {
	store    storage.Store
	ingestor *ingest.Ingestor
	pipe     *pipeline.Pipeline
	cfg      Config
	logger   *zap.Logger
}

// New creates a worker. Zero config fields get conservative defaults.
func New(store storage.Store, ingestor *ingest.Ingestor, pipe *pipeline.Pipeline, cfg Config, logger *zap.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{store: store, ingestor: ingestor, pipe: pipe, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled. Each poll claims one batch and processes
// it serially; the embedder is the bottleneck, not the loop.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	w.logger.Info("worker started",
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Duration("poll_interval", w.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("worker poll failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims and processes a single batch, returning how many jobs it
// handled. Per-job failures are reported to the queue, not returned.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.store.DequeueJobs(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("dequeuing jobs: %w", err)
	}
	for _, job := range jobs {
		if err := w.process(ctx, job); err != nil {
			w.logger.Warn("job failed",
				zap.String("job_id", job.ID),
				zap.String("kind", job.Kind),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
			if failErr := w.store.FailJob(ctx, job.ID, w.cfg.MaxAttempts); failErr != nil {
				w.logger.Error("failed to record job failure", zap.String("job_id", job.ID), zap.Error(failErr))
			}
			continue
		}
		if err := w.store.CompleteJob(ctx, job.ID); err != nil {
			w.logger.Error("failed to complete job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return len(jobs), nil
}

func (w *Worker) process(ctx context.Context, job *storage.Job) error {
	switch job.Kind {
	case storage.JobIngestFile:
		var payload IngestPayload
		if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
		_, err := w.ingestor.IngestFile(ctx, payload.Path, ingest.Options{
			Title:      payload.Title,
			SourceType: payload.SourceType,
			Boost:      payload.Boost,
		})
		return err
	case storage.JobRecommend:
		if w.pipe == nil {
			return fmt.Errorf("no pipeline configured for %s jobs", storage.JobRecommend)
		}
		var req models.RecommendationRequest
		if err := json.Unmarshal([]byte(job.Payload), &req); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
		// Requests are delivered at least once. Assemble returns the stored
		// result when the request ID already has an audit row, so a
		// redelivered job completes without running the pipeline twice.
		_, err := w.pipe.Assemble(ctx, &req)
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
