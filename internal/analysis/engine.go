package analysis

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/domain/advice"
	"github.com/okian/servecoach/internal/domain/landmark"
	"github.com/okian/servecoach/internal/domain/motion"
	"github.com/okian/servecoach/internal/domain/regions"
	"github.com/okian/servecoach/internal/domain/scoring"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/logger"
)

// EngineName identifies the local engine.
const EngineName = "local"

// Engine is the in-process analysis pipeline:
// sampler -> motion extractor -> landmarks and region proxies -> scorer -> advice.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	sampler    *video.Sampler
	table      *serve.ProfileTable
	scorer     *scoring.ProfileScorer
	advisor    *advice.Generator
	sourceOpts []video.SourceOption
	logger     logger.Logger
}

// EngineOption applies a configuration option to the Engine.
type EngineOption func(*Engine)

// WithSampler sets the frame sampler.
func WithSampler(s *video.Sampler) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.sampler = s
		}
	}
}

// WithProfileTable sets the reference profiles used for scoring and advice.
func WithProfileTable(t *serve.ProfileTable) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}

// WithSourceOptions sets options applied to sources opened from requests.
func WithSourceOptions(opts ...video.SourceOption) EngineOption {
	return func(e *Engine) {
		e.sourceOpts = opts
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates the local engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	if e.sampler == nil {
		e.sampler = video.NewSampler()
	}
	if e.table == nil {
		e.table = serve.DefaultProfileTable()
	}
	e.scorer = scoring.NewProfileScorer(scoring.WithProfileTable(e.table))
	e.advisor = advice.NewGenerator(e.table)
	return e
}

// Name implements Provider.
func (e *Engine) Name() string { return EngineName }

// Analyze implements Provider.
func (e *Engine) Analyze(ctx context.Context, req Request) (serve.AnalysisResult, error) {
	src, err := video.Open(req.ContentType, req.Data, e.sourceOpts...)
	if err != nil {
		return serve.AnalysisResult{}, err
	}
	return e.AnalyzeSource(ctx, src)
}

// AnalyzeSource samples src and runs the full pipeline. No partial result is
// returned on error.
func (e *Engine) AnalyzeSource(ctx context.Context, src video.Source) (serve.AnalysisResult, error) {
	extractor := motion.NewExtractor()
	plan, err := e.sampler.Sample(ctx, src, func(_ int, _ time.Duration, frame *image.RGBA) error {
		return extractor.Add(frame)
	})
	if err != nil {
		return serve.AnalysisResult{}, err
	}

	signal, err := extractor.Finish()
	if err != nil {
		return serve.AnalysisResult{}, err
	}

	res, err := e.Build(signal, plan.Duration)
	if err != nil {
		return serve.AnalysisResult{}, err
	}

	e.logger.Debug(ctx, "analysis complete",
		logger.Int("frames", signal.Len()),
		logger.String("top", res.Similarities[0].Player),
		logger.Int("score", res.Similarities[0].Score),
	)
	return res, nil
}

// AnalyzeFrames runs the pipeline on already sampled buffers.
func (e *Engine) AnalyzeFrames(frames []*image.RGBA, duration time.Duration) (serve.AnalysisResult, error) {
	extractor := motion.NewExtractor()
	for i, f := range frames {
		if err := extractor.Add(f); err != nil {
			return serve.AnalysisResult{}, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	signal, err := extractor.Finish()
	if err != nil {
		return serve.AnalysisResult{}, err
	}
	return e.Build(signal, duration)
}

// Build is the second phase: it fans the normalized signal out to the
// landmark detector and region proxies, then scores and advises.
func (e *Engine) Build(signal motion.Signal, duration time.Duration) (serve.AnalysisResult, error) {
	features, err := e.Features(signal, duration)
	if err != nil {
		return serve.AnalysisResult{}, err
	}

	similarities := e.scorer.Score(&features)
	if len(similarities) == 0 {
		return serve.AnalysisResult{}, serve.ErrNoSimilarities
	}
	tips, err := e.advisor.Generate(&features, similarities[0])
	if err != nil {
		return serve.AnalysisResult{}, err
	}

	return serve.AnalysisResult{
		Features:     features,
		Similarities: similarities,
		Advice:       tips,
	}, nil
}

// Features assembles ServeFeatures from a normalized signal.
func (e *Engine) Features(signal motion.Signal, duration time.Duration) (serve.Features, error) {
	lm, err := landmark.NewDetector(e.sampler.Rate()).Detect(signal.Energy)
	if err != nil {
		return serve.Features{}, err
	}
	proxies, err := regions.Compute(signal.Energy, signal.Centroids)
	if err != nil {
		return serve.Features{}, err
	}

	return serve.Features{
		DurationMs:            float64(duration) / float64(time.Millisecond),
		MotionEnergy:          signal.Energy,
		CentroidPath:          signal.Centroids,
		PeakTossIndex:         lm.PeakToss,
		ContactIndex:          lm.Contact,
		FollowThroughIndex:    lm.FollowThrough,
		LowerBodyEngagement:   proxies.LowerBodyEngagement,
		ShoulderRotationProxy: proxies.ShoulderRotationProxy,
		RacquetDropProxy:      proxies.RacquetDropProxy,
	}, nil
}

// Table returns the profile table in use.
func (e *Engine) Table() *serve.ProfileTable { return e.table }
