//go:build !cgo
// +build !cgo

package embedding

import "context"

// ONNXEmbedder stub type when built without CGO (see onnx.go for the real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder reports the embedding service unavailable when built
// without CGO; retrieval then runs in lexical-only mode.
func NewONNXEmbedder(_ string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, ErrUnavailable
}

// The stub methods below exist only so *ONNXEmbedder satisfies the Embedder
// interface; they are unreachable because NewONNXEmbedder always errors.

func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrUnavailable
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
