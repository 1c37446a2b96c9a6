package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ClaudeGenerator completes prompts against the Anthropic Messages API.
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	logger      *zap.Logger
}

// NewClaudeGenerator creates a generator for the given model. An empty API
// key is an error; callers that have no key should not construct one and
// rely on the heuristic path instead.
func NewClaudeGenerator(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) (*ClaudeGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is empty")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is empty")
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &ClaudeGenerator{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Model returns the configured model name.
func (g *ClaudeGenerator) Model() string {
	return g.model
}

// Complete sends one user message and concatenates the text blocks of the
// response.
func (g *ClaudeGenerator) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Temperature: anthropic.Float(g.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("anthropic response contained no text blocks")
	}
	g.logger.Debug("model completion received",
		zap.String("model", g.model),
		zap.Int("chars", len(text)))
	return text, nil
}
