package lexical

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cropsage/cropsage/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	passages := []*models.Passage{
		{
			ID:       "p1",
			SourceID: "s1",
			Content:  "Nitrogen deficiency causes interveinal chlorosis on older leaves.",
			Metadata: &models.PassageMetadata{Crops: []string{"corn"}, Topics: []string{"fertility"}},
		},
		{
			ID:       "p2",
			SourceID: "s1",
			Content:  "Late blight on tomato appears as dark water-soaked lesions.",
			Metadata: &models.PassageMetadata{Crops: []string{"tomato"}, Region: "california"},
		},
	}
	for _, p := range passages {
		if err := idx.Index(ctx, p, "Extension Guide"); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	results, err := idx.Search(ctx, "chlorosis", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "p1" {
		t.Errorf("chlorosis search: got %v", results)
	}

	results, err = idx.Search(ctx, "tomato blight", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "p2" {
		t.Errorf("tomato blight search: got %v", results)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	p := &models.Passage{ID: "p1", SourceID: "s1", Content: "powdery mildew on cucurbits"}
	if err := idx.Index(ctx, p, ""); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after delete: got %d, want 0", count)
	}
}
