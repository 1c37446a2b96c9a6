package synthesis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/models"
)

// HeuristicModelName labels results produced without a language model.
const HeuristicModelName = "heuristic"

// Synthesizer produces a normalized diagnosis for an observation and its
// ranked evidence. The generator is optional; without one every run takes
// the heuristic path.
type Synthesizer struct {
	generator Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSynthesizer creates a synthesizer. A nil generator is valid.
func NewSynthesizer(generator Generator, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{generator: generator, timeout: timeout, logger: logger}
}

// Synthesize returns a normalized output plus the name of the model that
// produced it. Model failures never surface as errors: a timeout, transport
// failure, or unparseable response all degrade to the heuristic result.
func (s *Synthesizer) Synthesize(ctx context.Context, input *models.InputSnapshot, candidates []models.RankedCandidate) (*models.SynthesizedOutput, string) {
	fallback := Heuristic(input, candidates)
	if s.generator == nil {
		return Normalize(nil, fallback, candidates), HeuristicModelName
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.generator.Complete(ctx, buildSystemPrompt(), buildUserPrompt(input, candidates))
	if err != nil {
		s.logger.Warn("model completion failed, using heuristic diagnosis",
			zap.String("input_id", input.ID), zap.Error(err))
		return Normalize(nil, fallback, candidates), HeuristicModelName
	}

	parsed, err := parseOutput(raw)
	if err != nil {
		s.logger.Warn("model response unusable, using heuristic diagnosis",
			zap.String("input_id", input.ID), zap.Error(err))
		return Normalize(nil, fallback, candidates), HeuristicModelName
	}

	return Normalize(parsed, fallback, candidates), s.generator.Model()
}
