// Package lexical provides the Bleve index used to narrow passages for the
// lexical retrieval fallback.
package lexical

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/cropsage/cropsage/internal/models"
)

// indexedPassage is the shape Bleve indexes for each passage.
type indexedPassage struct {
	Content     string   `json:"content"`
	SourceTitle string   `json:"source_title"`
	Crops       []string `json:"crops"`
	Topics      []string `json:"topics"`
	Region      string   `json:"region"`
}

// Result is a passage ID with its Bleve relevance score.
type Result struct {
	ID    string
	Score float64
}

// Index is the lexical passage index.
type Index interface {
	Index(ctx context.Context, passage *models.Passage, sourceTitle string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	Count() (uint64, error)
	Close() error
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused so unchanged sources are not re-indexed; remove the directory to
// force a full rebuild after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming): agronomy vocabulary
	// like "chlorosis" must match exactly, not through an English stemmer.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source_title", textFieldMapping)
	docMapping.AddFieldMappingsAt("crops", textFieldMapping)
	docMapping.AddFieldMappingsAt("topics", textFieldMapping)
	docMapping.AddFieldMappingsAt("region", textFieldMapping)
	im.AddDocumentMapping("passage", docMapping)
	im.DefaultType = "passage"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a passage by its chunk ID.
func (b *BleveIndex) Index(ctx context.Context, passage *models.Passage, sourceTitle string) error {
	doc := indexedPassage{
		Content:     passage.Content,
		SourceTitle: sourceTitle,
	}
	if passage.Metadata != nil {
		doc.Crops = passage.Metadata.Crops
		doc.Topics = passage.Metadata.Topics
		doc.Region = passage.Metadata.Region
	}
	return b.index.Index(passage.ID, doc)
}

// Search runs a match query over all fields and returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a passage from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Count returns the number of indexed passages.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
