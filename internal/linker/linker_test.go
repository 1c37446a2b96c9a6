package linker

import (
	"testing"

	"github.com/cropsage/cropsage/internal/models"
)

func tagged(id string, position int, tags ...string) *models.RankedCandidate {
	return &models.RankedCandidate{
		RetrievedCandidate: models.RetrievedCandidate{
			ChunkID:  id,
			Metadata: &models.PassageMetadata{Tags: tags, Position: position},
		},
	}
}

func intPtr(i int) *int { return &i }

func TestLinkImage_PicksBestTagOverlap(t *testing.T) {
	img := &models.ImageObservation{
		ID:       "img1",
		Tags:     []string{"leaf", "yellowing", "veins"},
		Position: intPtr(3),
	}
	candidates := []*models.RankedCandidate{
		tagged("a", 3, "leaf", "yellowing", "veins"),
		tagged("b", 3, "leaf"),
		tagged("c", 3, "roots", "soil"),
	}

	link := LinkImage(img, candidates)
	if link.LinkedChunkID != "a" {
		t.Errorf("got %s, want a", link.LinkedChunkID)
	}
	if link.Score <= 0 {
		t.Errorf("expected positive score, got %v", link.Score)
	}
}

func TestLinkImage_NoTagOverlapIsNull(t *testing.T) {
	img := &models.ImageObservation{
		ID:       "img1",
		Tags:     []string{"leaf", "curling"},
		Position: intPtr(1),
	}
	// Close position but no shared tags: never link on position alone.
	candidates := []*models.RankedCandidate{
		tagged("a", 1, "nitrogen", "water"),
	}

	link := LinkImage(img, candidates)
	if link.LinkedChunkID != "" {
		t.Errorf("expected no link, got %s", link.LinkedChunkID)
	}
	if link.Score != 0 {
		t.Errorf("expected score 0, got %v", link.Score)
	}
}

func TestLinkImage_PositionBreaksTies(t *testing.T) {
	img := &models.ImageObservation{
		ID:       "img1",
		Tags:     []string{"lesion"},
		Position: intPtr(5),
	}
	candidates := []*models.RankedCandidate{
		tagged("far", 25, "lesion"),
		tagged("near", 5, "lesion"),
	}

	link := LinkImage(img, candidates)
	if link.LinkedChunkID != "near" {
		t.Errorf("position proximity should prefer near, got %s", link.LinkedChunkID)
	}
}

func TestLinkImage_NoPositionStillLinks(t *testing.T) {
	img := &models.ImageObservation{ID: "img1", Tags: []string{"rust"}}
	candidates := []*models.RankedCandidate{tagged("a", 0, "rust")}

	link := LinkImage(img, candidates)
	if link.LinkedChunkID != "a" {
		t.Errorf("tag overlap without position should still link, got %q", link.LinkedChunkID)
	}
}

func TestLinkImages_Independent(t *testing.T) {
	images := []*models.ImageObservation{
		{ID: "i1", Tags: []string{"wilt"}},
		{ID: "i2", Tags: []string{"unrelated"}},
	}
	candidates := []*models.RankedCandidate{tagged("a", 0, "wilt")}

	links := LinkImages(images, candidates)
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].LinkedChunkID != "a" {
		t.Errorf("first image should link to a")
	}
	if links[1].LinkedChunkID != "" || links[1].Score != 0 {
		t.Errorf("second image should not link")
	}
}
