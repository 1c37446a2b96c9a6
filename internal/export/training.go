// Package export produces ranker training data from stored retrieval
// audits. Each audited candidate becomes one labeled feature row, suitable
// for fitting a learned re-ranker offline.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/models"
	"github.com/cropsage/cropsage/internal/storage"
)

// header is the fixed feature schema. Order is part of the contract with
// the training side; append new features, never reorder.
var header = []string{
	"qid",
	"label",
	"f0_similarity",
	"f1_rank_score",
	"f2_authority",
	"f3_source_boost",
	"f4_crop_match",
	"f5_term_density",
	"f6_chunk_pos",
}

// Labels: candidates the synthesis did not cite are negatives; cited ones
// are positives, upgraded when the grower left positive feedback.
const (
	labelNotCited      = 0
	labelCited         = 1
	labelCitedPositive = 2
)

// exportPage is how many audits one store call fetches.
const exportPage = 200

// Exporter writes training CSV from retrieval audits.
type Exporter struct {
	store  storage.Store
	logger *zap.Logger
}

// NewExporter creates an exporter over the given store.
func NewExporter(store storage.Store, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

// WriteCSV streams every audit's candidates as labeled feature rows.
// Returns the number of data rows written.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	rows := 0
	for offset := 0; ; offset += exportPage {
		audits, err := e.store.ListAudits(ctx, offset, exportPage)
		if err != nil {
			return rows, fmt.Errorf("listing audits: %w", err)
		}
		for _, audit := range audits {
			for _, c := range audit.Candidates {
				if err := cw.Write(featureRow(audit.RecommendationID, &c)); err != nil {
					return rows, fmt.Errorf("writing row: %w", err)
				}
				rows++
			}
		}
		if len(audits) < exportPage {
			break
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flushing csv: %w", err)
	}
	e.logger.Info("training data exported", zap.Int("rows", rows))
	return rows, nil
}

func featureRow(qid string, c *models.AuditedChunk) []string {
	return []string{
		qid,
		strconv.Itoa(label(c)),
		formatFloat(c.Similarity),
		formatFloat(c.RankScore),
		formatFloat(c.Authority),
		formatFloat(c.SourceBoost),
		formatBool(c.CropMatch),
		formatFloat(c.TermDensity),
		strconv.Itoa(c.ChunkPos),
	}
}

func label(c *models.AuditedChunk) int {
	switch {
	case !c.Cited:
		return labelNotCited
	case c.Feedback > 0:
		return labelCitedPositive
	default:
		return labelCited
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
