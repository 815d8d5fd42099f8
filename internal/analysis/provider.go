// Package analysis runs serve analyses. The local Engine extracts motion
// features from the clip itself; other providers, such as the external pose
// pipeline, produce the same AnalysisResult shape and are chained with
// Fallback by the caller.
package analysis

import (
	"context"

	"github.com/okian/servecoach/internal/domain/serve"
)

// Request carries one uploaded clip.
type Request struct {
	ID          string
	ContentType string
	Data        []byte
}

// Provider produces an AnalysisResult for a clip.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Analyze runs one analysis, honoring ctx for cancellation.
	Analyze(ctx context.Context, req Request) (serve.AnalysisResult, error)
}

// Outcome is a result attributed to the provider that produced it.
type Outcome struct {
	Provider string
	Result   serve.AnalysisResult
}

// Runner is implemented by providers that delegate to others, so callers can
// tell which one answered.
type Runner interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

// Run analyzes req with p, attributing the result through Runner when p
// supports it.
func Run(ctx context.Context, p Provider, req Request) (Outcome, error) {
	if r, ok := p.(Runner); ok {
		return r.Run(ctx, req)
	}
	res, err := p.Analyze(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Provider: p.Name(), Result: res}, nil
}
