package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"testdeck/internal/store"
)

// Put upserts the serialized job record.
func (s *Store) Put(ctx context.Context, job *store.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	query := `
		INSERT INTO jobs (job_id, record)
		VALUES ($1, $2)
		ON CONFLICT (job_id) DO UPDATE SET record = EXCLUDED.record
	`
	if _, err := s.db.ExecContext(ctx, query, job.ID, data); err != nil {
		return store.Unavailable("put", err)
	}
	return nil
}

// Get returns the job or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, jobID string) (*store.Job, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM jobs WHERE job_id = $1", jobID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable("get", err)
	}

	var j store.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	return &j, nil
}

// Scan returns every job record in the table.
func (s *Store) Scan(ctx context.Context) ([]*store.Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM jobs")
	if err != nil {
		return nil, store.Unavailable("scan", err)
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, store.Unavailable("scan row", err)
		}
		var j store.Job
		if err := json.Unmarshal(data, &j); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("scan rows", err)
	}
	return jobs, nil
}

// Delete removes the job row. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM jobs WHERE job_id = $1", jobID); err != nil {
		return store.Unavailable("delete", err)
	}
	return nil
}
