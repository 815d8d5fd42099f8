// Package types contains the read shapes returned by the API.
package types

import (
	"time"

	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
)

// JobView is the JSON shape of a job.
type JobView struct {
	ID        string                `json:"id"`
	Status    model.Status          `json:"status"`
	Provider  string                `json:"provider,omitempty"`
	Error     string                `json:"error,omitempty"`
	Result    *serve.AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewJobView converts a stored job.
func NewJobView(j model.Job) JobView {
	return JobView{
		ID:        j.ID,
		Status:    j.Status,
		Provider:  j.Provider,
		Error:     j.Error,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ProfilesView lists the reference players and proxy weights in use.
type ProfilesView struct {
	Profiles []serve.Profile `json:"profiles"`
	Weights  serve.Weights   `json:"weights"`
}

// Submission acknowledges an upload.
type Submission struct {
	ID        string       `json:"id"`
	Status    model.Status `json:"status"`
	Duplicate bool         `json:"duplicate,omitempty"`
}
