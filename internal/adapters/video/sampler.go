package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/logger"
	"github.com/okian/servecoach/pkg/metrics"
)

// Default sampler configuration constants.
const (
	DefaultSampleRate   = 12.0
	DefaultMinSamples   = 8
	DefaultReadyTimeout = 10 * time.Second

	downscaleFactor = 4
	minTargetWidth  = 160
	minTargetHeight = 90
)

// FrameFunc receives each sampled frame in increasing time order. The buffer
// is owned by the callee.
type FrameFunc func(index int, at time.Duration, frame *image.RGBA) error

// Plan describes one sampling pass.
type Plan struct {
	Duration time.Duration
	Count    int
	Width    int
	Height   int
	Rate     float64
}

// Timestamp returns t_i = (i / Count) * Duration.
func (p Plan) Timestamp(i int) time.Duration {
	return time.Duration(float64(i) / float64(p.Count) * float64(p.Duration))
}

// Sampler drives a Source to evenly spaced timestamps.
type Sampler struct {
	rate         float64
	minSamples   int
	readyTimeout time.Duration
	logger       logger.Logger
}

// SamplerOption applies a configuration option to the Sampler.
type SamplerOption func(*Sampler)

// WithSampleRate sets the target samples per second.
func WithSampleRate(rate float64) SamplerOption {
	return func(s *Sampler) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithMinSamples raises the floor on the number of samples per clip. Values
// below DefaultMinSamples are ignored.
func WithMinSamples(n int) SamplerOption {
	return func(s *Sampler) {
		if n >= DefaultMinSamples {
			s.minSamples = n
		}
	}
}

// WithReadyTimeout bounds how long the sampler waits for a source to become ready.
func WithReadyTimeout(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		if d > 0 {
			s.readyTimeout = d
		}
	}
}

// WithSamplerLogger sets a custom logger.
func WithSamplerLogger(l logger.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSampler creates a sampler with configuration options.
func NewSampler(opts ...SamplerOption) *Sampler {
	s := &Sampler{
		rate:         DefaultSampleRate,
		minSamples:   DefaultMinSamples,
		readyTimeout: DefaultReadyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sampler")
	}
	return s
}

// Rate returns the configured sample rate.
func (s *Sampler) Rate() float64 { return s.rate }

// PlanFor computes the sample count and target resolution for a source
// of the given duration and native bounds.
func (s *Sampler) PlanFor(duration time.Duration, bounds image.Rectangle) Plan {
	count := max(s.minSamples, int(math.Floor(duration.Seconds()*s.rate)))
	return Plan{
		Duration: duration,
		Count:    count,
		Width:    max(bounds.Dx()/downscaleFactor, minTargetWidth),
		Height:   max(bounds.Dy()/downscaleFactor, minTargetHeight),
		Rate:     s.rate,
	}
}

// Sample waits for src to become ready, then seeks to each planned
// timestamp in order and hands the frame to fn before requesting the next.
func (s *Sampler) Sample(ctx context.Context, src Source, fn FrameFunc) (Plan, error) {
	if err := s.waitReady(ctx, src); err != nil {
		return Plan{}, err
	}

	duration := src.Duration()
	if duration <= 0 {
		return Plan{}, fmt.Errorf("zero-duration source: %w", serve.ErrEmptySignal)
	}
	plan := s.PlanFor(duration, src.Bounds())

	s.logger.Debug(ctx, "sampling source",
		logger.Duration("duration", plan.Duration),
		logger.Int("samples", plan.Count),
		logger.Int("width", plan.Width),
		logger.Int("height", plan.Height),
	)

	for i := 0; i < plan.Count; i++ {
		at := plan.Timestamp(i)
		if err := src.Seek(ctx, at); err != nil {
			return Plan{}, fmt.Errorf("seek to %v: %w", at, err)
		}
		frame, err := src.Frame(plan.Width, plan.Height)
		if err != nil {
			return Plan{}, fmt.Errorf("read frame at %v: %w", at, err)
		}
		metrics.RecordFrameSampled()
		if err := fn(i, at, frame); err != nil {
			return Plan{}, err
		}
	}
	return plan, nil
}

func (s *Sampler) waitReady(ctx context.Context, src Source) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()

	err := src.WaitReady(readyCtx)
	if err == nil {
		return nil
	}
	// The caller gave up; that is not the source's fault.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	metrics.RecordSourceNotReady()
	s.logger.Warn(ctx, "video source never became ready", logger.Error(err))
	if errors.Is(err, serve.ErrSourceNotReady) {
		return err
	}
	return fmt.Errorf("%w: %w", serve.ErrSourceNotReady, err)
}
