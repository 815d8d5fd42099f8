package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/logger"
	"github.com/okian/servecoach/pkg/metrics"
)

// Fallback tries providers in order and returns the first success.
type Fallback struct {
	providers []Provider
	logger    logger.Logger
}

// NewFallback chains providers, most preferred first.
func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{
		providers: providers,
		logger:    logger.Get().Named("analysis"),
	}
}

// Name implements Provider.
func (f *Fallback) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// Analyze implements Provider.
func (f *Fallback) Analyze(ctx context.Context, req Request) (serve.AnalysisResult, error) {
	out, err := f.Run(ctx, req)
	return out.Result, err
}

// Run is Analyze that also reports which provider answered.
func (f *Fallback) Run(ctx context.Context, req Request) (Outcome, error) {
	if len(f.providers) == 0 {
		return Outcome{}, ErrNoProviders
	}

	var errs []error
	for i, p := range f.providers {
		start := time.Now()
		res, err := p.Analyze(ctx, req)
		metrics.RecordAnalysisLatency(p.Name(), float64(time.Since(start).Milliseconds()))
		if err == nil {
			metrics.RecordAnalysis(p.Name(), "ok")
			if top, topErr := res.Top(); topErr == nil {
				metrics.RecordTopScore(top.Score)
			}
			return Outcome{Provider: p.Name(), Result: res}, nil
		}

		metrics.RecordAnalysis(p.Name(), "error")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(f.providers)-1 {
			metrics.RecordProviderFallback(p.Name())
			f.logger.Warn(ctx, "provider failed, falling back",
				logger.String("provider", p.Name()),
				logger.String("next", f.providers[i+1].Name()),
				logger.Error(err),
			)
		}
	}
	return Outcome{}, errors.Join(errs...)
}
