// Package chunk splits reference documents into token-bounded,
// overlap-preserving passages at ingestion time.
package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/cropsage/cropsage/internal/models"
)

// Default token bounds for a passage.
const (
	DefaultMinTokens     = 180
	DefaultMaxTokens     = 520
	DefaultOverlapTokens = 60
)

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

// Chunker splits text into paragraph-bounded passages within a token range,
// carrying sentence-level overlap into the next chunk.
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
}

// NewChunker creates a chunker with the given token bounds. Non-positive
// values fall back to the defaults.
func NewChunker(minTokens, maxTokens, overlapTokens int) *Chunker {
	if minTokens <= 0 {
		minTokens = DefaultMinTokens
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{minTokens: minTokens, maxTokens: maxTokens, overlapTokens: overlapTokens}
}

// EstimateTokens estimates the token count of text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Chunk splits a section's text into passages for sourceID. Paragraph
// boundaries are never split except that a single paragraph larger than the
// max budget is emitted whole as its own over-budget chunk.
func (c *Chunker) Chunk(sourceID, text string) []*models.Passage {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var passages []*models.Passage
	var current []string
	currentTokens := 0
	overlap := ""

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(current, "\n\n"))
		passages = append(passages, c.newPassage(sourceID, len(passages), content))
		overlap = c.overlapText(content)
		current = nil
		currentTokens = 0
	}

	startChunk := func(para string) {
		if overlap != "" {
			current = []string{overlap, para}
			currentTokens = EstimateTokens(overlap) + EstimateTokens(para)
			return
		}
		current = []string{para}
		currentTokens = EstimateTokens(para)
	}

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		if len(current) == 0 {
			if paraTokens > c.maxTokens {
				// Oversized paragraph: emitted whole rather than dropped.
				passages = append(passages, c.newPassage(sourceID, len(passages), para))
				overlap = c.overlapText(para)
				continue
			}
			startChunk(para)
			continue
		}

		if currentTokens+paraTokens > c.maxTokens && currentTokens >= c.minTokens {
			flush()
			if paraTokens > c.maxTokens {
				passages = append(passages, c.newPassage(sourceID, len(passages), para))
				overlap = c.overlapText(para)
				continue
			}
			startChunk(para)
			continue
		}

		current = append(current, para)
		currentTokens += paraTokens
	}
	flush()

	return passages
}

func (c *Chunker) newPassage(sourceID string, index int, content string) *models.Passage {
	return &models.Passage{
		ID:         fmt.Sprintf("%s_%s", sourceID, uuid.New().String()[:8]),
		SourceID:   sourceID,
		Content:    content,
		ChunkIndex: index,
		TokenCount: EstimateTokens(content),
	}
}

// overlapText walks backward through sentence boundaries of content until the
// overlap token budget is filled, returning the trailing sentences.
func (c *Chunker) overlapText(content string) string {
	if c.overlapTokens == 0 {
		return ""
	}
	sentences := splitSentences(content)
	var picked []string
	tokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		t := EstimateTokens(s)
		if tokens+t > c.overlapTokens && len(picked) > 0 {
			break
		}
		picked = append([]string{s}, picked...)
		tokens += t
		if tokens >= c.overlapTokens {
			break
		}
	}
	return strings.TrimSpace(strings.Join(picked, " "))
}

func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	raw := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
