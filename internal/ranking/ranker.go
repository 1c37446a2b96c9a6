package ranking

import (
	"sort"

	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Ranker combines the four component scorers into one rank score.
type Ranker struct {
	config    *Config
	vector    VectorScorer
	keyword   KeywordScorer
	authority AuthorityScorer
	metadata  MetadataScorer
}

// NewRanker creates a Ranker with the given configuration. A nil config uses
// the production weights.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Ranker{config: config}
}

// Score computes the breakdown and combined rank score for one candidate.
func (r *Ranker) Score(ctx *Context, c *models.RetrievedCandidate) (float64, models.ScoreBreakdown) {
	breakdown := models.ScoreBreakdown{
		Vector:    r.vector.Score(ctx, c),
		Keyword:   r.keyword.Score(ctx, c),
		Authority: r.authority.Score(ctx, c),
		Metadata:  r.metadata.Score(ctx, c),
	}
	score := r.config.VectorWeight*breakdown.Vector +
		r.config.KeywordWeight*breakdown.Keyword +
		r.config.AuthorityWeight*breakdown.Authority +
		r.config.MetadataWeight*breakdown.Metadata
	return utils.Clamp01(score), breakdown
}

// Rank scores all candidates and returns them sorted descending by rank
// score. The sort is stable, so equal scores keep retrieval order and the
// output is deterministic for a deterministic input order.
func (r *Ranker) Rank(ctx *Context, candidates []*models.RetrievedCandidate) []*models.RankedCandidate {
	ranked := make([]*models.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, breakdown := r.Score(ctx, c)
		ranked = append(ranked, &models.RankedCandidate{
			RetrievedCandidate: *c,
			RankScore:          score,
			Breakdown:          breakdown,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankScore > ranked[j].RankScore
	})
	return ranked
}
