// Package ingest turns reference documents into ready, retrievable passages:
// extract text, chunk it, embed the chunks, persist them, and index them for
// semantic and lexical search.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/chunk"
	"github.com/cropsage/cropsage/internal/embedding"
	"github.com/cropsage/cropsage/internal/extract"
	"github.com/cropsage/cropsage/internal/lexical"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/vector"
)

// Ingestor runs the full ingest path for one document at a time.
type Ingestor struct {
	store     storage.Store
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	embedder  embedding.Embedder
	index     vector.Index
	lexical   lexical.Index
	logger    *zap.Logger
}

// New creates an ingestor. The lexical index may be nil.
func New(store storage.Store, chunker *chunk.Chunker, embedder embedding.Embedder, index vector.Index, lex lexical.Index, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		extractor: extract.NewExtractor(),
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		lexical:   lex,
		logger:    logger,
	}
}

// Options describes the source being ingested. A zero SourceID gets a fresh
// uuid.
type Options struct {
	SourceID   string
	Title      string
	SourceType models.SourceType
	Boost      float64
	Metadata   *models.PassageMetadata
}

// IngestFile extracts a file and ingests its text. The source title defaults
// to the file name and the source ID is derived from the path, so ingesting
// the same file again replaces the earlier source.
func (i *Ingestor) IngestFile(ctx context.Context, path string, opts Options) (*models.ReferenceSource, error) {
	text, err := i.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}
	if opts.Title == "" {
		opts.Title = filepath.Base(path)
	}
	if opts.SourceID == "" {
		opts.SourceID = FileSourceID(path)
	}
	if err := i.RemoveSource(ctx, opts.SourceID); err != nil {
		return nil, fmt.Errorf("replacing source: %w", err)
	}
	return i.IngestText(ctx, text, opts)
}

// IngestText creates a source, chunks and embeds the text, and marks the
// source ready. An embedder outage is not fatal: passages are stored without
// embeddings and remain reachable through the lexical path, so the source
// still becomes ready.
func (i *Ingestor) IngestText(ctx context.Context, text string, opts Options) (*models.ReferenceSource, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document contains no text")
	}
	if opts.SourceType == "" {
		opts.SourceType = models.SourceOther
	}

	if opts.SourceID == "" {
		opts.SourceID = uuid.New().String()
	}
	src := &models.ReferenceSource{
		ID:         opts.SourceID,
		Title:      opts.Title,
		SourceType: opts.SourceType,
		Boost:      opts.Boost,
	}
	if err := i.store.CreateSource(ctx, src); err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	if err := i.buildPassages(ctx, src, text, opts.Metadata); err != nil {
		if stErr := i.store.UpdateSourceStatus(ctx, src.ID, models.StatusFailed); stErr != nil {
			i.logger.Error("failed to mark source failed", zap.String("source_id", src.ID), zap.Error(stErr))
		}
		return nil, err
	}

	if err := i.store.UpdateSourceStatus(ctx, src.ID, models.StatusReady); err != nil {
		return nil, fmt.Errorf("marking source ready: %w", err)
	}
	src.Status = models.StatusReady
	return src, nil
}

func (i *Ingestor) buildPassages(ctx context.Context, src *models.ReferenceSource, text string, md *models.PassageMetadata) error {
	passages := i.chunker.Chunk(src.ID, text)
	if len(passages) == 0 {
		return fmt.Errorf("chunker produced no passages")
	}
	for idx, p := range passages {
		if md != nil {
			copied := *md
			copied.Position = idx
			p.Metadata = &copied
		}
	}

	texts := make([]string, len(passages))
	for idx, p := range passages {
		texts[idx] = p.Content
	}
	embeddings, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		i.logger.Warn("embedder unavailable, storing passages without embeddings",
			zap.String("source_id", src.ID), zap.Error(err))
		embeddings = nil
	}
	if embeddings != nil {
		for idx, p := range passages {
			p.Embedding = embeddings[idx]
		}
	}

	if err := i.store.BatchCreatePassages(ctx, passages); err != nil {
		return fmt.Errorf("storing passages: %w", err)
	}

	if embeddings != nil {
		ids := make([]string, len(passages))
		for idx, p := range passages {
			ids[idx] = p.ID
		}
		if err := i.index.Add(ctx, ids, embeddings); err != nil {
			return fmt.Errorf("indexing embeddings: %w", err)
		}
	}

	if i.lexical != nil {
		for _, p := range passages {
			if err := i.lexical.Index(ctx, p, src.Title); err != nil {
				return fmt.Errorf("indexing passage %s: %w", p.ID, err)
			}
		}
	}

	i.logger.Info("source ingested",
		zap.String("source_id", src.ID),
		zap.String("title", src.Title),
		zap.Int("passages", len(passages)),
		zap.Bool("embedded", embeddings != nil))
	return nil
}

// RemoveSource deletes a source, its passages, and their index entries.
func (i *Ingestor) RemoveSource(ctx context.Context, sourceID string) error {
	passages, err := i.store.GetPassagesBySource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("loading passages: %w", err)
	}
	ids := make([]string, len(passages))
	for idx, p := range passages {
		ids[idx] = p.ID
	}
	if err := i.index.Remove(ctx, ids); err != nil {
		return fmt.Errorf("removing from vector index: %w", err)
	}
	if i.lexical != nil {
		for _, id := range ids {
			if err := i.lexical.Delete(ctx, id); err != nil {
				return fmt.Errorf("removing from lexical index: %w", err)
			}
		}
	}
	if err := i.store.DeleteSource(ctx, sourceID); err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	return nil
}
