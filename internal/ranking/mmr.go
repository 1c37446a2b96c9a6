package ranking

import (
	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/pkg/utils"
)

// DefaultMMRLambda trades relevance against redundancy in Diversify.
const DefaultMMRLambda = 0.6

// mmrTokenMinLen is the minimum token length used for the redundancy measure.
const mmrTokenMinLen = 4

// Diversify greedily reorders an already-ranked list so the top k items
// maximize lambda*relevance - (1-lambda)*maxJaccardToSelected. A no-op when
// the list already fits in k. Deterministic: ties keep the earlier candidate.
func Diversify(ranked []*models.RankedCandidate, k int, lambda float64) []*models.RankedCandidate {
	if len(ranked) <= k {
		return ranked
	}
	if lambda < 0 || lambda > 1 {
		lambda = DefaultMMRLambda
	}

	tokenSets := make([]map[string]struct{}, len(ranked))
	for i, c := range ranked {
		tokenSets[i] = tokenSet(c.Content)
	}

	selected := make([]*models.RankedCandidate, 0, k)
	selectedSets := make([]map[string]struct{}, 0, k)
	used := make([]bool, len(ranked))

	for len(selected) < k {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range ranked {
			if used[i] {
				continue
			}
			redundancy := 0.0
			for _, s := range selectedSets {
				if j := jaccard(tokenSets[i], s); j > redundancy {
					redundancy = j
				}
			}
			score := lambda*c.RankScore - (1-lambda)*redundancy
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, ranked[bestIdx])
		selectedSets = append(selectedSets, tokenSets[bestIdx])
	}
	return selected
}

func tokenSet(content string) map[string]struct{} {
	tokens := utils.AlphaTokens(content, mmrTokenMinLen)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for t := range small {
		if _, ok := large[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
