// Package vector provides the passage vector index used by semantic retrieval.
package vector

import "context"

// VectorResult is a passage ID with its similarity score.
type VectorResult struct {
	ID    string
	Score float64
}

// Index stores passage embeddings and answers nearest-neighbor queries.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}
