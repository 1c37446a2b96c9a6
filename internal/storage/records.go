package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cropsage/cropsage/internal/models"
)

// CreateSnapshot inserts an input snapshot.
func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *models.InputSnapshot) error {
	snap.CreatedAt = time.Now()
	var labJSON string
	if len(snap.LabData) > 0 {
		b, err := json.Marshal(snap.LabData)
		if err != nil {
			return fmt.Errorf("failed to marshal lab data: %w", err)
		}
		labJSON = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO input_snapshots (id, type, crop, location, season, growth_stage, description, lab_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, string(snap.Type), snap.Crop, snap.Location, snap.Season,
		snap.GrowthStage, snap.Description, labJSON, snap.CreatedAt,
	)
	return err
}

// GetSnapshot returns an input snapshot by ID.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*models.InputSnapshot, error) {
	var snap models.InputSnapshot
	var obsType string
	var labJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, crop, location, season, growth_stage, description, lab_data, created_at
		 FROM input_snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &obsType, &snap.Crop, &snap.Location, &snap.Season,
		&snap.GrowthStage, &snap.Description, &labJSON, &snap.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("input snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	snap.Type = models.ObservationType(obsType)
	if labJSON.Valid && labJSON.String != "" {
		if err := json.Unmarshal([]byte(labJSON.String), &snap.LabData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lab data: %w", err)
		}
	}
	return &snap, nil
}

// SaveResult stores a finished recommendation result. The payload is kept as
// JSON; results are written once and never updated.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *models.RecommendationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendation_results (recommendation_id, input_id, payload, created_at)
		 VALUES (?, ?, ?, ?)`,
		result.RecommendationID, result.InputID, string(payload), result.CreatedAt,
	)
	return err
}

// GetResult returns a recommendation result by ID.
func (s *SQLiteStore) GetResult(ctx context.Context, recommendationID string) (*models.RecommendationResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM recommendation_results WHERE recommendation_id = ?`,
		recommendationID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result %s: %w", recommendationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var result models.RecommendationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// CreateAudit appends one retrieval audit. The primary key rejects a second
// audit for the same recommendation.
func (s *SQLiteStore) CreateAudit(ctx context.Context, audit *models.RetrievalAudit) error {
	terms, err := json.Marshal(audit.Terms)
	if err != nil {
		return fmt.Errorf("failed to marshal audit terms: %w", err)
	}
	candidates, err := json.Marshal(audit.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal audit candidates: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO retrieval_audits (recommendation_id, query, terms, candidates, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		audit.RecommendationID, audit.Query, string(terms), string(candidates), audit.CreatedAt,
	)
	return err
}

// GetAudit returns the retrieval audit for a recommendation.
func (s *SQLiteStore) GetAudit(ctx context.Context, recommendationID string) (*models.RetrievalAudit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT recommendation_id, query, terms, candidates, created_at
		 FROM retrieval_audits WHERE recommendation_id = ?`,
		recommendationID,
	)
	audit, err := scanAudit(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("audit %s: %w", recommendationID, ErrNotFound)
	}
	return audit, err
}

// AuditExists reports whether an audit row already exists for a
// recommendation. The pipeline uses this as its idempotency check.
func (s *SQLiteStore) AuditExists(ctx context.Context, recommendationID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM retrieval_audits WHERE recommendation_id = ?`,
		recommendationID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAudits returns audits oldest first for training export.
func (s *SQLiteStore) ListAudits(ctx context.Context, offset, limit int) ([]*models.RetrievalAudit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recommendation_id, query, terms, candidates, created_at
		 FROM retrieval_audits ORDER BY created_at LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*models.RetrievalAudit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, audit)
	}
	return audits, rows.Err()
}

// SetAuditFeedback records grower feedback on one audited chunk. Feedback is
// the only mutable part of an audit row.
func (s *SQLiteStore) SetAuditFeedback(ctx context.Context, recommendationID, chunkID string, feedback int) error {
	audit, err := s.GetAudit(ctx, recommendationID)
	if err != nil {
		return err
	}
	found := false
	for i := range audit.Candidates {
		if audit.Candidates[i].ChunkID == chunkID {
			audit.Candidates[i].Feedback = feedback
			found = true
		}
	}
	if !found {
		return fmt.Errorf("chunk %s in audit %s: %w", chunkID, recommendationID, ErrNotFound)
	}
	candidates, err := json.Marshal(audit.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal audit candidates: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE retrieval_audits SET candidates = ? WHERE recommendation_id = ?`,
		string(candidates), recommendationID,
	)
	return err
}

// SaveReview stores a compliance review, replacing any previous evaluation
// for the same recommendation.
func (s *SQLiteStore) SaveReview(ctx context.Context, review *models.RiskReview) error {
	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO compliance_reviews (recommendation_id, payload, evaluated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(recommendation_id) DO UPDATE SET payload = excluded.payload, evaluated_at = excluded.evaluated_at`,
		review.RecommendationID, string(payload), review.EvaluatedAt,
	)
	return err
}

// GetReview returns the stored compliance review for a recommendation.
func (s *SQLiteStore) GetReview(ctx context.Context, recommendationID string) (*models.RiskReview, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM compliance_reviews WHERE recommendation_id = ?`,
		recommendationID,
	).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review %s: %w", recommendationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var review models.RiskReview
	if err := json.Unmarshal([]byte(payload), &review); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review: %w", err)
	}
	return &review, nil
}

func scanAudit(row rowScanner) (*models.RetrievalAudit, error) {
	var audit models.RetrievalAudit
	var terms, candidates string
	err := row.Scan(&audit.RecommendationID, &audit.Query, &terms, &candidates, &audit.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(terms), &audit.Terms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit terms: %w", err)
	}
	if err := json.Unmarshal([]byte(candidates), &audit.Candidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit candidates: %w", err)
	}
	return &audit, nil
}
