// Package repository stores analysis jobs and their results.
package repository

import (
	"context"

	"github.com/okian/servecoach/internal/domain/model"
)

// UpdateFunc mutates a job in place. Returning an error aborts the update.
type UpdateFunc func(j *model.Job) error

// Store provides read/write access to analysis jobs.
type Store interface {
	// Create inserts a new job. Returns ErrExists if the id is taken.
	Create(ctx context.Context, job model.Job) error

	// Get returns the job with id. Returns ErrNotFound if it is unknown.
	Get(ctx context.Context, id string) (model.Job, error)

	// Update applies fn to the stored job and persists the result.
	Update(ctx context.Context, id string, fn UpdateFunc) (model.Job, error)

	// Count returns the number of stored jobs.
	Count(ctx context.Context) int

	// Close releases resources held by the store.
	Close() error
}
