// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/servecoach/internal/domain/serve"
)

// Status is the lifecycle state of an analysis job.
type Status string

// Job states. queued -> running -> done | failed.
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is the stored record of one submitted clip.
type Job struct {
	ID          string
	Digest      string
	ContentType string
	Status      Status
	Provider    string // provider that produced Result
	Error       string
	Result      *serve.AnalysisResult
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task is what flows through the queue to the workers.
type Task struct {
	JobID       string
	ContentType string
	Data        []byte
}
