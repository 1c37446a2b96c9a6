package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Job statuses.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job kinds.
const (
	JobIngestFile = "ingest_file"
	JobRecommend  = "recommend"
)

// Job is one queued unit of ingest work. Payload holds a kind-specific JSON
// document.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnqueueJob adds a pending job to the queue.
func (s *SQLiteStore) EnqueueJob(ctx context.Context, job *Job) error {
	now := time.Now()
	job.Status = JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, kind, payload, status, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		job.ID, job.Kind, job.Payload, job.Status, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

// DequeueJobs claims up to batch pending jobs, oldest first, marking them
// running inside one transaction so concurrent workers never share a job.
func (s *SQLiteStore) DequeueJobs(ctx context.Context, batch int) ([]*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, kind, payload, status, attempts, created_at, updated_at
		 FROM jobs WHERE status = ? ORDER BY created_at LIMIT ?`,
		JobPending, batch,
	)
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Kind, &job.Payload, &job.Status,
			&job.Attempts, &job.CreatedAt, &job.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now()
	for _, job := range jobs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
			JobRunning, now, job.ID,
		); err != nil {
			return nil, err
		}
		job.Status = JobRunning
		job.Attempts++
		job.UpdatedAt = now
	}
	return jobs, tx.Commit()
}

// CompleteJob marks a job done.
func (s *SQLiteStore) CompleteJob(ctx context.Context, id string) error {
	return s.setJobStatus(ctx, id, JobDone)
}

// FailJob returns a job to the queue, or marks it failed once it has used up
// maxAttempts.
func (s *SQLiteStore) FailJob(ctx context.Context, id string, maxAttempts int) error {
	var attempts int
	err := s.db.QueryRowContext(ctx, `SELECT attempts FROM jobs WHERE id = ?`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	status := JobPending
	if attempts >= maxAttempts {
		status = JobFailed
	}
	return s.setJobStatus(ctx, id, status)
}

func (s *SQLiteStore) setJobStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}
