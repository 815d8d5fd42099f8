package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/metrics"

	_ "modernc.org/sqlite"
)

// schema.sql creates the analysis_jobs table.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists jobs and their results in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s := &SQLiteStore{db: db, now: cfg.now}
	metrics.UpdateJobsStored(s.Count(ctx))
	return s, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, job model.Job) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	result, err := encodeResult(job.Result)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs (id, digest, content_type, status, provider, error, result_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.Digest, job.ContentType, string(job.Status), job.Provider, job.Error, result,
		job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", job.ID, ErrExists)
	}
	metrics.UpdateJobsStored(s.Count(ctx))
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Job, error) {
	return scanJob(s.db.QueryRowContext(ctx, selectJob, id), id)
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, id string, fn UpdateFunc) (model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Job{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := scanJob(tx.QueryRowContext(ctx, selectJob, id), id)
	if err != nil {
		return model.Job{}, err
	}
	if err := fn(&job); err != nil {
		return model.Job{}, err
	}
	job.ID = id
	job.UpdatedAt = s.now()

	result, err := encodeResult(job.Result)
	if err != nil {
		return model.Job{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = ?, provider = ?, error = ?, result_json = ?, updated_at = ?
		WHERE id = ?`,
		string(job.Status), job.Provider, job.Error, result, job.UpdatedAt.UnixNano(), id,
	); err != nil {
		return model.Job{}, fmt.Errorf("update job %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Job{}, fmt.Errorf("commit: %w", err)
	}
	return job, nil
}

// FailInterrupted marks every queued or running job as failed with
// ErrInterrupted and returns how many were changed. The job queue lives in
// memory, so such rows have no worker left after a restart.
func (s *SQLiteStore) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = ?, error = ?, updated_at = ?
		WHERE status IN (?, ?)`,
		string(model.StatusFailed), ErrInterrupted.Error(), s.now().UnixNano(),
		string(model.StatusQueued), string(model.StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return n, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_jobs`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectJob = `
	SELECT id, digest, content_type, status, provider, error, result_json, created_at, updated_at
	FROM analysis_jobs WHERE id = ?`

func scanJob(row *sql.Row, id string) (model.Job, error) {
	var (
		job              model.Job
		status           string
		result           sql.NullString
		created, updated int64
	)
	err := row.Scan(&job.ID, &job.Digest, &job.ContentType, &status, &job.Provider, &job.Error, &result, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("scan job %s: %w", id, err)
	}
	job.Status = model.Status(status)
	job.CreatedAt = time.Unix(0, created)
	job.UpdatedAt = time.Unix(0, updated)
	if result.Valid && result.String != "" {
		var r serve.AnalysisResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return model.Job{}, fmt.Errorf("decode result %s: %w", id, err)
		}
		job.Result = &r
	}
	return job, nil
}

func encodeResult(r *serve.AnalysisResult) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode result: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
