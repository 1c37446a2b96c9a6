package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cropsage/cropsage/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source_type TEXT NOT NULL,
		boost REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status);

	CREATE TABLE IF NOT EXISTS passages (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		token_count INTEGER NOT NULL,
		embedding BLOB,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_passages_source_id ON passages(source_id);
	CREATE INDEX IF NOT EXISTS idx_passages_source_chunk ON passages(source_id, chunk_index);

	CREATE TABLE IF NOT EXISTS input_snapshots (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		crop TEXT,
		location TEXT,
		season TEXT,
		growth_stage TEXT,
		description TEXT NOT NULL,
		lab_data TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recommendation_results (
		recommendation_id TEXT PRIMARY KEY,
		input_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS retrieval_audits (
		recommendation_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		terms TEXT NOT NULL,
		candidates TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS compliance_reviews (
		recommendation_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		evaluated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSource inserts a reference source.
func (s *SQLiteStore) CreateSource(ctx context.Context, src *models.ReferenceSource) error {
	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now
	if src.Status == "" {
		src.Status = models.StatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, title, source_type, boost, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Title, string(src.SourceType), src.Boost, src.Status, src.CreatedAt, src.UpdatedAt,
	)
	return err
}

// GetSource returns a source by ID.
func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*models.ReferenceSource, error) {
	var src models.ReferenceSource
	var sourceType string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, source_type, boost, status, created_at, updated_at
		 FROM sources WHERE id = ?`, id,
	).Scan(&src.ID, &src.Title, &sourceType, &src.Boost, &src.Status, &src.CreatedAt, &src.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	src.SourceType = models.SourceType(sourceType)
	return &src, nil
}

// UpdateSourceStatus moves a source through the ingest lifecycle.
func (s *SQLiteStore) UpdateSourceStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListSources returns sources with offset and limit, newest first.
func (s *SQLiteStore) ListSources(ctx context.Context, offset, limit int) ([]*models.ReferenceSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, source_type, boost, status, created_at, updated_at
		 FROM sources ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.ReferenceSource
	for rows.Next() {
		var src models.ReferenceSource
		var sourceType string
		if err := rows.Scan(&src.ID, &src.Title, &sourceType, &src.Boost, &src.Status, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		src.SourceType = models.SourceType(sourceType)
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and, via cascade, its passages.
func (s *SQLiteStore) DeleteSource(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	return err
}

// BatchCreatePassages inserts passages in a single transaction.
func (s *SQLiteStore) BatchCreatePassages(ctx context.Context, passages []*models.Passage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (id, source_id, content, chunk_index, token_count, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range passages {
		p.CreatedAt = now
		metadataJSON, err := marshalMetadata(p.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.SourceID, p.Content, p.ChunkIndex, p.TokenCount,
			encodeEmbedding(p.Embedding), metadataJSON, p.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetPassage returns a passage by ID.
func (s *SQLiteStore) GetPassage(ctx context.Context, id string) (*models.Passage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, content, chunk_index, token_count, embedding, metadata, created_at
		 FROM passages WHERE id = ?`, id,
	)
	p, err := scanPassage(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("passage %s: %w", id, ErrNotFound)
	}
	return p, err
}

// GetPassagesBySource returns all passages of a source ordered by chunk_index.
func (s *SQLiteStore) GetPassagesBySource(ctx context.Context, sourceID string) ([]*models.Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, content, chunk_index, token_count, embedding, metadata, created_at
		 FROM passages WHERE source_id = ? ORDER BY chunk_index`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPassages(rows)
}

// ListReadyPassages returns every passage whose source is ready. Pending and
// failed sources stay invisible to retrieval.
func (s *SQLiteStore) ListReadyPassages(ctx context.Context) ([]*models.Passage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.source_id, p.content, p.chunk_index, p.token_count, p.embedding, p.metadata, p.created_at
		 FROM passages p JOIN sources s ON s.id = p.source_id
		 WHERE s.status = ? ORDER BY p.source_id, p.chunk_index`,
		models.StatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPassages(rows)
}

// DeletePassagesBySource removes all passages of a source.
func (s *SQLiteStore) DeletePassagesBySource(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE source_id = ?`, sourceID)
	return err
}

// CountPassages returns the total number of passages.
func (s *SQLiteStore) CountPassages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPassage(row rowScanner) (*models.Passage, error) {
	var p models.Passage
	var embedding []byte
	var metadataJSON sql.NullString
	err := row.Scan(&p.ID, &p.SourceID, &p.Content, &p.ChunkIndex, &p.TokenCount,
		&embedding, &metadataJSON, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Embedding = decodeEmbedding(embedding)
	if metadataJSON.Valid && metadataJSON.String != "" {
		var md models.PassageMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &md); err != nil {
			return nil, fmt.Errorf("failed to unmarshal passage metadata: %w", err)
		}
		p.Metadata = &md
	}
	return &p, nil
}

func collectPassages(rows *sql.Rows) ([]*models.Passage, error) {
	var passages []*models.Passage
	for rows.Next() {
		p, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}

func marshalMetadata(md *models.PassageMetadata) (string, error) {
	if md == nil {
		return "", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("failed to marshal passage metadata: %w", err)
	}
	return string(b), nil
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
