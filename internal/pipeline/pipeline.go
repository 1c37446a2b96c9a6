// Package pipeline assembles recommendations: expand the observation into a
// query, retrieve and rank evidence, diversify, synthesize a diagnosis, and
// persist the result with its retrieval audit.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/expand"
	"github.com/cropsage/cropsage/internal/linker"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/ranking"
	"github.com/cropsage/cropsage/internal/retrieval"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/synthesis"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Options tunes the assembly run.
type Options struct {
	// ContextTopK is how many ranked candidates reach the synthesizer.
	ContextTopK int
	// MMRLambda balances relevance against redundancy when diversifying.
	MMRLambda float64
}

// Pipeline wires the assembly stages together.
type Pipeline struct {
	store       storage.Store
	expander    *expand.Expander
	retriever   *retrieval.Retriever
	ranker      *ranking.Ranker
	synthesizer *synthesis.Synthesizer
	opts        Options
	logger      *zap.Logger
}

// New creates a pipeline. Zero option fields get production defaults.
func New(store storage.Store, retriever *retrieval.Retriever, ranker *ranking.Ranker, synthesizer *synthesis.Synthesizer, opts Options, logger *zap.Logger) *Pipeline {
	if opts.ContextTopK <= 0 {
		opts.ContextTopK = 5
	}
	if opts.MMRLambda <= 0 || opts.MMRLambda > 1 {
		opts.MMRLambda = ranking.DefaultMMRLambda
	}
	return &Pipeline{
		store:       store,
		expander:    expand.NewExpander(),
		retriever:   retriever,
		ranker:      ranker,
		synthesizer: synthesizer,
		opts:        opts,
		logger:      logger,
	}
}

// Assemble runs one recommendation end to end. Reruns with the same
// recommendation ID are no-ops that return the stored result: the audit row
// is the idempotency marker, written in the same breath as the result.
func (p *Pipeline) Assemble(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RecommendationID == "" {
		req.RecommendationID = uuid.New().String()
	}

	exists, err := p.store.AuditExists(ctx, req.RecommendationID)
	if err != nil {
		return nil, fmt.Errorf("checking audit: %w", err)
	}
	if exists {
		p.logger.Info("recommendation already assembled",
			zap.String("recommendation_id", req.RecommendationID))
		return p.store.GetResult(ctx, req.RecommendationID)
	}

	snap, err := p.store.GetSnapshot(ctx, req.InputID)
	if err != nil {
		return nil, fmt.Errorf("loading input: %w", err)
	}

	expansion := p.expander.Expand(snap.Description, expand.Context{
		Crop:        snap.Crop,
		Region:      snap.Location,
		GrowthStage: snap.GrowthStage,
	})

	candidates, err := p.retriever.Retrieve(ctx, expansion, &retrieval.Context{Crop: snap.Crop}, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}

	ranked := p.ranker.Rank(&ranking.Context{
		Terms:      expansion.Terms,
		Crop:       snap.Crop,
		Region:     snap.Location,
		TopicHints: expansion.Terms,
	}, candidates)

	if req.Diversify {
		ranked = ranking.Diversify(ranked, req.Limit, p.opts.MMRLambda)
	} else if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	topK := ranked
	if len(topK) > p.opts.ContextTopK {
		topK = topK[:p.opts.ContextTopK]
	}
	contextSet := make([]models.RankedCandidate, len(topK))
	for i, c := range topK {
		contextSet[i] = *c
	}

	output, modelUsed := p.synthesizer.Synthesize(ctx, snap, contextSet)

	cited := citedChunks(output)
	result := &models.RecommendationResult{
		RecommendationID: req.RecommendationID,
		InputID:          snap.ID,
		Confidence:       output.Diagnosis.Confidence,
		Diagnosis:        *output,
		Sources:          sourceRefs(topK, cited),
		ImageLinks:       imageLinks(req.Images, topK),
		ModelUsed:        modelUsed,
		CreatedAt:        time.Now(),
	}

	audit := p.buildAudit(req.RecommendationID, snap, expansion, ranked, cited)
	if err := p.store.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("saving result: %w", err)
	}
	if err := p.store.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("saving audit: %w", err)
	}

	p.logger.Info("recommendation assembled",
		zap.String("recommendation_id", req.RecommendationID),
		zap.String("input_id", snap.ID),
		zap.String("model", modelUsed),
		zap.Int("candidates", len(ranked)),
		zap.Int("cited", len(cited)))
	return result, nil
}

// citedChunks collects every chunk ID the synthesized output cites.
func citedChunks(output *models.SynthesizedOutput) map[string]bool {
	cited := make(map[string]bool)
	for _, rec := range output.Recommendations {
		for _, id := range rec.Citations {
			cited[id] = true
		}
	}
	return cited
}

// sourceRefs lists the context passages, cited ones first.
func sourceRefs(topK []*models.RankedCandidate, cited map[string]bool) []models.SourceRef {
	refs := make([]models.SourceRef, 0, len(topK))
	for _, c := range topK {
		if cited[c.ChunkID] {
			refs = append(refs, sourceRef(c))
		}
	}
	for _, c := range topK {
		if !cited[c.ChunkID] {
			refs = append(refs, sourceRef(c))
		}
	}
	return refs
}

func sourceRef(c *models.RankedCandidate) models.SourceRef {
	return models.SourceRef{
		ChunkID:   c.ChunkID,
		Relevance: c.RankScore,
		Excerpt:   utils.Truncate(c.Content, 200),
	}
}

func imageLinks(images []models.ImageObservation, topK []*models.RankedCandidate) []models.ImageLink {
	if len(images) == 0 {
		return nil
	}
	ptrs := make([]*models.ImageObservation, len(images))
	for i := range images {
		ptrs[i] = &images[i]
	}
	var links []models.ImageLink
	for _, link := range linker.LinkImages(ptrs, topK) {
		links = append(links, models.ImageLink{
			ImageID: link.ImageID,
			ChunkID: link.LinkedChunkID,
			Score:   link.Score,
		})
	}
	return links
}

// buildAudit records every candidate that survived ranking, with the
// per-candidate features the training exporter reads.
func (p *Pipeline) buildAudit(recommendationID string, snap *models.InputSnapshot, expansion *models.QueryExpansionResult, ranked []*models.RankedCandidate, cited map[string]bool) *models.RetrievalAudit {
	audit := &models.RetrievalAudit{
		RecommendationID: recommendationID,
		Query:            expansion.ExpandedQuery,
		Terms:            expansion.Terms,
		CreatedAt:        time.Now(),
	}
	crop := strings.ToLower(snap.Crop)
	for _, c := range ranked {
		chunkPos := 0
		cropMatch := false
		if c.Metadata != nil {
			chunkPos = c.Metadata.Position
			for _, mc := range c.Metadata.Crops {
				if strings.ToLower(mc) == crop && crop != "" {
					cropMatch = true
					break
				}
			}
		}
		audit.Candidates = append(audit.Candidates, models.AuditedChunk{
			ChunkID:     c.ChunkID,
			Similarity:  c.Similarity,
			RankScore:   c.RankScore,
			Authority:   c.Breakdown.Authority,
			SourceBoost: c.SourceBoost,
			CropMatch:   cropMatch,
			TermDensity: c.Breakdown.Keyword,
			ChunkPos:    chunkPos,
			Cited:       cited[c.ChunkID],
		})
	}
	return audit
}
