package repository

import (
	"fmt"

	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
)

// MarkRunning moves a queued job to running.
func MarkRunning() UpdateFunc {
	return func(j *model.Job) error {
		if j.Status != model.StatusQueued {
			return fmt.Errorf("%s -> %s: %w", j.Status, model.StatusRunning, ErrInvalidState)
		}
		j.Status = model.StatusRunning
		return nil
	}
}

// Complete stores a result on a running job.
func Complete(provider string, result serve.AnalysisResult) UpdateFunc {
	return func(j *model.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("%s -> %s: %w", j.Status, model.StatusDone, ErrInvalidState)
		}
		j.Status = model.StatusDone
		j.Provider = provider
		j.Error = ""
		j.Result = &result
		return nil
	}
}

// Fail records an analysis failure.
func Fail(reason error) UpdateFunc {
	return func(j *model.Job) error {
		if j.Status.Terminal() {
			return fmt.Errorf("%s -> %s: %w", j.Status, model.StatusFailed, ErrInvalidState)
		}
		j.Status = model.StatusFailed
		if reason != nil {
			j.Error = reason.Error()
		}
		return nil
	}
}
