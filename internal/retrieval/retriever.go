// Package retrieval finds candidate passages for an expanded query. The
// primary path is semantic search over passage embeddings; when the embedder
// is unavailable the retriever degrades to deterministic lexical matching
// rather than failing the run.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/embedding"
	"github.com/cropsage/cropsage/internal/lexical"
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/storage"
	"github.com/cropsage/cropsage/internal/vector"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Scoring adjustments applied on top of raw cosine similarity.
const (
	// termBoostPerMatch rewards expanded query terms literally present in
	// the passage, up to termBoostCap.
	termBoostPerMatch = 0.05
	termBoostCap      = 0.15

	// sourceBoostClamp bounds the curator-assigned per-source boost so a
	// misconfigured source cannot dominate retrieval.
	sourceBoostClamp = 0.2
)

// Context is the observation-side context retrieval matches against.
type Context struct {
	Crop string
}

// Retriever produces scored candidates for the ranking stage.
type Retriever struct {
	store    storage.Store
	embedder embedding.Embedder
	index    vector.Index
	lexical  lexical.Index
	logger   *zap.Logger
}

// NewRetriever creates a retriever. The lexical index may be nil, in which
// case the fallback path scans ready passages directly.
func NewRetriever(store storage.Store, embedder embedding.Embedder, index vector.Index, lex lexical.Index, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, index: index, lexical: lex, logger: logger}
}

// Retrieve returns up to 2*limit candidates, best first. Embedder failures
// degrade to the lexical path; storage failures surface as errors because
// without the store there is nothing to degrade to.
func (r *Retriever) Retrieve(ctx context.Context, exp *models.QueryExpansionResult, rctx *Context, limit int) ([]*models.RetrievedCandidate, error) {
	sources, err := r.readySources(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}

	queryVec, err := r.embedder.Embed(ctx, exp.ExpandedQuery)
	if err != nil {
		r.logger.Warn("embedder unavailable, degrading to lexical retrieval", zap.Error(err))
		return r.lexicalRetrieve(ctx, exp, rctx, sources, limit)
	}

	hits, err := r.index.Search(ctx, queryVec, limit*4)
	if err != nil {
		r.logger.Warn("vector search failed, degrading to lexical retrieval", zap.Error(err))
		return r.lexicalRetrieve(ctx, exp, rctx, sources, limit)
	}

	candidates := make([]*models.RetrievedCandidate, 0, len(hits))
	for _, hit := range hits {
		passage, err := r.store.GetPassage(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// The index can briefly lead the store after a source removal.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading passage %s: %w", hit.ID, err)
		}
		src, ok := sources[passage.SourceID]
		if !ok {
			continue
		}
		c := candidateFrom(passage, src)
		c.Similarity = utils.Clamp01(hit.Score + termBoost(passage.Content, exp.Terms) + clampBoost(src.Boost))
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		// A reachable but empty vector path (cold index, every hit filtered)
		// degrades the same way an unreachable embedder does.
		r.logger.Warn("vector path returned no usable candidates, degrading to lexical retrieval")
		return r.lexicalRetrieve(ctx, exp, rctx, sources, limit)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit*2 {
		candidates = candidates[:limit*2]
	}
	r.logger.Debug("semantic retrieval complete",
		zap.Int("hits", len(hits)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// readySources returns ready sources keyed by ID.
func (r *Retriever) readySources(ctx context.Context) (map[string]*models.ReferenceSource, error) {
	sources := make(map[string]*models.ReferenceSource)
	const page = 500
	for offset := 0; ; offset += page {
		batch, err := r.store.ListSources(ctx, offset, page)
		if err != nil {
			return nil, err
		}
		for _, src := range batch {
			if src.Status == models.StatusReady {
				sources[src.ID] = src
			}
		}
		if len(batch) < page {
			return sources, nil
		}
	}
}

func candidateFrom(p *models.Passage, src *models.ReferenceSource) *models.RetrievedCandidate {
	return &models.RetrievedCandidate{
		ChunkID:     p.ID,
		SourceID:    p.SourceID,
		Content:     p.Content,
		SourceType:  src.SourceType,
		SourceTitle: src.Title,
		SourceBoost: src.Boost,
		Metadata:    p.Metadata,
	}
}

func clampBoost(boost float64) float64 {
	return utils.Clamp(boost, -sourceBoostClamp, sourceBoostClamp)
}
