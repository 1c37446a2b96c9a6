package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	ctx := context.Background()
	err = idx.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result: got %s, want a", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("second result: got %s, want c", results[1].ID)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected dimension mismatch error on Add")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error on Search")
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Remove(ctx, []string{"a"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size: got %d, want 1", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 2)
	for _, r := range results {
		if r.ID == "a" {
			t.Error("removed id still returned")
		}
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx", "passages.vec")
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{0.6, 0.8}, {1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := NewMemoryIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("loaded Size: got %d, want 2", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0.6, 0.8}, 1)
	if len(results) != 1 || results[0].ID != "x" {
		t.Errorf("loaded search: got %v", results)
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.vec")); err != nil {
		t.Errorf("Load of missing file should be a no-op, got %v", err)
	}
}

func TestMemoryIndex_AddReplacesExistingPassage(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewMemoryIndex(2)
	if err := idx.Add(ctx, []string{"p1"}, [][]float32{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	// Re-ingesting the same passage swaps the vector without growing the
	// index.
	if err := idx.Add(ctx, []string{"p1"}, [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("size = %d, want 1", idx.Size())
	}
	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "p1" || hits[0].Score < 0.99 {
		t.Fatalf("hits = %+v, want p1 scored against the replacement vector", hits)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if s := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); s != 1 {
		t.Errorf("identical vectors: got %v, want 1", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); s != 0 {
		t.Errorf("orthogonal vectors: got %v, want 0", s)
	}
	if s := CosineSimilarity([]float32{1, 0}, []float32{-1, 0}); s != 0 {
		t.Errorf("opposed vectors clamp to 0, got %v", s)
	}
	if s := CosineSimilarity([]float32{1}, []float32{1, 0}); s != 0 {
		t.Errorf("length mismatch: got %v, want 0", s)
	}
}
