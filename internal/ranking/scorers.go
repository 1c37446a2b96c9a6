package ranking

import (
	"strings"

	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Context carries the query-side inputs every scorer reads.
type Context struct {
	// Terms is the expanded query term list, already lowercased.
	Terms []string
	// Crop, Region are the observation's structured context.
	Crop   string
	Region string
	// TopicHints are topics inferred from the observation (symptom category,
	// season), matched against passage topic metadata.
	TopicHints []string
}

// Scorer computes one rank component for a candidate, always in [0,1].
type Scorer interface {
	Score(ctx *Context, c *models.RetrievedCandidate) float64
	Name() string
}

// VectorScorer passes through the retrieval similarity.
type VectorScorer struct{}

func (VectorScorer) Name() string { return "vector" }

func (VectorScorer) Score(_ *Context, c *models.RetrievedCandidate) float64 {
	return utils.Clamp01(c.Similarity)
}

// KeywordScorer measures the fraction of query terms literally present in the
// candidate content.
type KeywordScorer struct{}

func (KeywordScorer) Name() string { return "keyword" }

func (KeywordScorer) Score(ctx *Context, c *models.RetrievedCandidate) float64 {
	if len(ctx.Terms) == 0 {
		return 0
	}
	content := strings.ToLower(c.Content)
	matched := 0
	for _, term := range ctx.Terms {
		if strings.Contains(content, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(ctx.Terms))
}

// AuthorityScorer applies the fixed credibility table by source type.
type AuthorityScorer struct{}

func (AuthorityScorer) Name() string { return "authority" }

func (AuthorityScorer) Score(_ *Context, c *models.RetrievedCandidate) float64 {
	return Authority(c.SourceType)
}

// Metadata match contributions.
const (
	cropMatchBonus   = 0.4
	regionMatchBonus = 0.3
	topicMatchBonus  = 0.15
)

// MetadataScorer rewards crop, region, and topic agreement between the
// observation and the passage metadata. The sum is clamped to 1.
type MetadataScorer struct{}

func (MetadataScorer) Name() string { return "metadata" }

func (MetadataScorer) Score(ctx *Context, c *models.RetrievedCandidate) float64 {
	md := c.Metadata
	if md == nil {
		return 0
	}
	score := 0.0

	if ctx.Crop != "" {
		crop := strings.ToLower(ctx.Crop)
		for _, mc := range md.Crops {
			if strings.ToLower(mc) == crop {
				score += cropMatchBonus
				break
			}
		}
	}

	if ctx.Region != "" && md.Region != "" {
		region := strings.ToLower(ctx.Region)
		mdRegion := strings.ToLower(md.Region)
		if strings.Contains(mdRegion, region) || strings.Contains(region, mdRegion) {
			score += regionMatchBonus
		}
	}

	if len(ctx.TopicHints) > 0 && len(md.Topics) > 0 {
		topics := make(map[string]struct{}, len(md.Topics))
		for _, t := range md.Topics {
			topics[strings.ToLower(t)] = struct{}{}
		}
		for _, hint := range ctx.TopicHints {
			if _, ok := topics[strings.ToLower(hint)]; ok {
				score += topicMatchBonus
			}
		}
	}

	return utils.Clamp01(score)
}
