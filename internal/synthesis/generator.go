// Package synthesis turns ranked evidence passages into a structured
// diagnosis, via a language model when one is configured and through a
// deterministic heuristic otherwise.
package synthesis

import "context"

// Generator produces a raw completion for a system/user prompt pair.
// Implementations must honor ctx cancellation.
type Generator interface {
	// Complete returns the model's raw text response.
	Complete(ctx context.Context, system, user string) (string, error)

	// Model identifies the backing model for result records.
	Model() string
}
