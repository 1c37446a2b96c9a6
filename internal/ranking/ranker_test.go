package ranking

import (
	"testing"

	"github.com/cropsage/cropsage/internal/models"
)

func candidate(id string, similarity float64, st models.SourceType, content string) *models.RetrievedCandidate {
	return &models.RetrievedCandidate{
		ChunkID:    id,
		SourceID:   "src-" + id,
		Content:    content,
		Similarity: similarity,
		SourceType: st,
	}
}

func TestRanker_ComponentsInRange(t *testing.T) {
	ranker := NewRanker(nil)
	ctx := &Context{
		Terms:      []string{"chlorosis", "nitrogen", "corn"},
		Crop:       "corn",
		Region:     "iowa",
		TopicHints: []string{"fertility", "disease"},
	}
	cands := []*models.RetrievedCandidate{
		candidate("a", 0.94, models.SourceGovernment, "Interveinal chlorosis from nitrogen shortage in corn."),
		candidate("b", 1.7, models.SourceRetailer, "Product page."),
		candidate("c", -0.3, models.SourceOther, ""),
	}
	cands[0].Metadata = &models.PassageMetadata{
		Crops:  []string{"corn"},
		Region: "iowa",
		Topics: []string{"fertility"},
	}

	for _, rc := range ranker.Rank(ctx, cands) {
		b := rc.Breakdown
		for name, v := range map[string]float64{
			"vector": b.Vector, "keyword": b.Keyword,
			"authority": b.Authority, "metadata": b.Metadata,
			"rank_score": rc.RankScore,
		} {
			if v < 0 || v > 1 {
				t.Errorf("candidate %s %s out of [0,1]: %v", rc.ChunkID, name, v)
			}
		}
	}
}

func TestRanker_WeightFormula(t *testing.T) {
	ranker := NewRanker(nil)
	ctx := &Context{Terms: []string{"blight", "tomato"}}
	c := candidate("a", 0.8, models.SourceUniversityExtension, "Tomato blight management.")

	score, b := ranker.Score(ctx, c)
	want := 0.55*b.Vector + 0.20*b.Keyword + 0.15*b.Authority + 0.10*b.Metadata
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score %v does not match weighted sum %v", score, want)
	}
	if b.Vector != 0.8 {
		t.Errorf("vector component: got %v, want 0.8", b.Vector)
	}
	if b.Keyword != 1.0 {
		t.Errorf("keyword component: got %v, want 1.0 (both terms present)", b.Keyword)
	}
}

func TestRanker_ScoreMonotonicInVector(t *testing.T) {
	ranker := NewRanker(nil)
	ctx := &Context{Terms: []string{"rust"}}
	low := candidate("a", 0.3, models.SourceGovernment, "wheat rust bulletin")
	high := candidate("b", 0.7, models.SourceGovernment, "wheat rust bulletin")

	lowScore, _ := ranker.Score(ctx, low)
	highScore, _ := ranker.Score(ctx, high)
	if highScore <= lowScore {
		t.Errorf("rank score must strictly increase with vector: %v vs %v", lowScore, highScore)
	}
}

func TestRanker_AuthorityOrdering(t *testing.T) {
	// Identical vector/keyword/metadata; government must outrank retailer.
	ranker := NewRanker(nil)
	ctx := &Context{Terms: []string{"aphid"}}
	gov := candidate("gov", 0.5, models.SourceGovernment, "aphid control guidance")
	retail := candidate("retail", 0.5, models.SourceRetailer, "aphid control guidance")

	ranked := ranker.Rank(ctx, []*models.RetrievedCandidate{retail, gov})
	if ranked[0].ChunkID != "gov" {
		t.Errorf("government source must rank first, got %s", ranked[0].ChunkID)
	}
	if ranked[0].RankScore <= ranked[1].RankScore {
		t.Errorf("government score %v not strictly above retailer %v",
			ranked[0].RankScore, ranked[1].RankScore)
	}
}

func TestRanker_StableForEqualScores(t *testing.T) {
	ranker := NewRanker(nil)
	ctx := &Context{Terms: []string{"mildew"}}
	a := candidate("a", 0.5, models.SourceOther, "powdery mildew")
	b := candidate("b", 0.5, models.SourceOther, "powdery mildew")

	ranked := ranker.Rank(ctx, []*models.RetrievedCandidate{a, b})
	if ranked[0].ChunkID != "a" || ranked[1].ChunkID != "b" {
		t.Errorf("equal scores must keep input order: %s, %s", ranked[0].ChunkID, ranked[1].ChunkID)
	}
}

func TestMetadataScorer_CapsAtOne(t *testing.T) {
	scorer := MetadataScorer{}
	ctx := &Context{
		Crop:       "corn",
		Region:     "nebraska",
		TopicHints: []string{"fertility", "irrigation", "disease", "pests", "weeds"},
	}
	c := candidate("a", 0.5, models.SourceOther, "")
	c.Metadata = &models.PassageMetadata{
		Crops:  []string{"corn"},
		Region: "nebraska",
		Topics: []string{"fertility", "irrigation", "disease", "pests", "weeds"},
	}
	if s := scorer.Score(ctx, c); s != 1.0 {
		t.Errorf("metadata score should clamp to 1, got %v", s)
	}
}

func TestAuthority_UnknownType(t *testing.T) {
	if Authority(models.SourceType("blog")) != 0.5 {
		t.Errorf("unknown source type should score like other")
	}
}
