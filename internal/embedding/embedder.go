// Package embedding provides passage and query embedding behind a small
// interface. The retrieval layer treats any embedder failure as "service
// unavailable" and degrades to lexical search.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no embedding backend can serve requests
// (for example a non-CGO build without ONNX runtime).
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
