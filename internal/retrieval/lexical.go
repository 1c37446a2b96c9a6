package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// Lexical fallback tuning.
const (
	// Terms shorter than lexicalTermMin are too ambiguous to match on, and
	// past lexicalTermCap extra terms only dilute the match fraction.
	lexicalTermMin = 4
	lexicalTermCap = 10

	// cropBoost rewards passages tagged with the observation's crop.
	cropBoost = 0.1

	// Low-signal filter: passages this short or this symbol-heavy are
	// table fragments and headers, not prose worth citing.
	minContentLength = 40
	minAlphaRatio    = 0.5

	// bleveNarrowLimit caps how many passages the Bleve index nominates
	// before deterministic scoring.
	bleveNarrowLimit = 50
)

// lexicalRetrieve scores passages by literal term overlap. It is fully
// deterministic so the pipeline stays auditable when the embedder is down.
func (r *Retriever) lexicalRetrieve(ctx context.Context, exp *models.QueryExpansionResult, rctx *Context, sources map[string]*models.ReferenceSource, limit int) ([]*models.RetrievedCandidate, error) {
	terms := lexicalTerms(exp.Terms)
	if len(terms) == 0 {
		return nil, nil
	}

	pool, err := r.narrowPool(ctx, terms)
	if err != nil {
		return nil, err
	}

	crop := strings.ToLower(rctx.Crop)
	var candidates []*models.RetrievedCandidate
	for _, passage := range pool {
		src, ok := sources[passage.SourceID]
		if !ok {
			continue
		}
		if len(passage.Content) < minContentLength || utils.AlphaRatio(passage.Content) < minAlphaRatio {
			continue
		}
		haystack := matchTarget(passage, src)
		matched := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(terms))
		if crop != "" && passage.Metadata != nil {
			for _, mc := range passage.Metadata.Crops {
				if strings.ToLower(mc) == crop {
					score += cropBoost
					break
				}
			}
		}
		score += clampBoost(src.Boost)

		c := candidateFrom(passage, src)
		c.Similarity = utils.Clamp01(score)
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit*2 {
		candidates = candidates[:limit*2]
	}
	r.logger.Debug("lexical retrieval complete",
		zap.Int("pool", len(pool)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// narrowPool asks the Bleve index for a candidate pool and falls back to a
// full scan of ready passages when no index is available or it comes up
// empty.
func (r *Retriever) narrowPool(ctx context.Context, terms []string) ([]*models.Passage, error) {
	if r.lexical != nil {
		hits, err := r.lexical.Search(ctx, strings.Join(terms, " "), bleveNarrowLimit)
		if err != nil {
			r.logger.Warn("bleve narrowing failed, scanning all passages", zap.Error(err))
		} else if len(hits) > 0 {
			pool := make([]*models.Passage, 0, len(hits))
			for _, hit := range hits {
				passage, err := r.store.GetPassage(ctx, hit.ID)
				if err != nil {
					continue
				}
				pool = append(pool, passage)
			}
			return pool, nil
		}
	}
	pool, err := r.store.ListReadyPassages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing passages: %w", err)
	}
	return pool, nil
}

// matchTarget builds the lowered text a passage is matched against. Terms
// can hit the passage body, the source title, or the curated metadata, so a
// passage tagged "tomato" matches even when the prose never names the crop.
func matchTarget(passage *models.Passage, src *models.ReferenceSource) string {
	var b strings.Builder
	b.WriteString(passage.Content)
	b.WriteByte(' ')
	b.WriteString(src.Title)
	if passage.Metadata != nil {
		for _, c := range passage.Metadata.Crops {
			b.WriteByte(' ')
			b.WriteString(c)
		}
		for _, t := range passage.Metadata.Topics {
			b.WriteByte(' ')
			b.WriteString(t)
		}
		for _, t := range passage.Metadata.Tags {
			b.WriteByte(' ')
			b.WriteString(t)
		}
		b.WriteByte(' ')
		b.WriteString(passage.Metadata.Region)
	}
	return strings.ToLower(b.String())
}

// lexicalTerms filters expanded terms down to the ones worth literal
// matching, preserving order.
func lexicalTerms(terms []string) []string {
	kept := make([]string, 0, lexicalTermCap)
	for _, term := range terms {
		if len(term) < lexicalTermMin {
			continue
		}
		kept = append(kept, strings.ToLower(term))
		if len(kept) == lexicalTermCap {
			break
		}
	}
	return kept
}

// termBoost rewards literal query term presence on top of vector similarity.
func termBoost(content string, terms []string) float64 {
	lower := strings.ToLower(content)
	boost := 0.0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			boost += termBoostPerMatch
			if boost >= termBoostCap {
				return termBoostCap
			}
		}
	}
	return boost
}
