// Package service wires the analysis pipeline, job queue, workers and store
// behind the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/servecoach/internal/adapters/mq/queue"
	workerpool "github.com/okian/servecoach/internal/adapters/mq/worker"
	"github.com/okian/servecoach/internal/adapters/remote"
	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/dedupe"
	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/internal/domain/types"
	"github.com/okian/servecoach/pkg/logger"
	"github.com/okian/servecoach/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service implements the API dependencies for serve analysis.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	deduper  dedupe.Deduper
	queue    jobqueue.Queue
	provider analysis.Provider
	pool     *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	queueBytes    int64
	dedupeSize    int
	jobTimeout    time.Duration
	sampleRate    float64
	minSamples    int
	readyTimeout  time.Duration
	sourceOpts    []video.SourceOption
	table         *serve.ProfileTable
	remoteURL     string
	remoteTimeout time.Duration
	sqlitePath    string
	providers     []analysis.Provider

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		dedupeSize:   50_000,
		jobTimeout:   time.Minute,
		sampleRate:   video.DefaultSampleRate,
		minSamples:   video.DefaultMinSamples,
		readyTimeout: video.DefaultReadyTimeout,
		table:        serve.DefaultProfileTable(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components and starts the workers. Workers outlive ctx;
// they stop in Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting serve analysis service...")

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
	}

	providers := s.providers
	if len(providers) == 0 {
		built, err := s.buildProviders()
		if err != nil {
			return err
		}
		providers = built
	}
	s.provider = analysis.NewFallback(providers...)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithMaxBytes(s.queueBytes),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.provider, s.store,
		workerpool.WithJobTimeout(s.jobTimeout),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "serve analysis service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("providers", s.provider.Name()),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.sqlitePath == "" {
		s.logger.Info(ctx, "using in-memory job store")
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.NewSQLiteStore(ctx, s.sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	interrupted, err := store.FailInterrupted(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open job store: %w", err)
	}
	s.logger.Info(ctx, "using sqlite job store",
		logger.String("path", s.sqlitePath),
		logger.Int("interrupted", int(interrupted)),
	)
	return store, nil
}

func (s *Service) buildProviders() ([]analysis.Provider, error) {
	engine := analysis.NewEngine(
		analysis.WithProfileTable(s.table),
		analysis.WithSampler(video.NewSampler(
			video.WithSampleRate(s.sampleRate),
			video.WithMinSamples(s.minSamples),
			video.WithReadyTimeout(s.readyTimeout),
		)),
		analysis.WithSourceOptions(s.sourceOpts...),
	)
	if s.remoteURL == "" {
		return []analysis.Provider{engine}, nil
	}
	client, err := remote.NewClient(s.remoteURL, remote.WithTimeout(s.remoteTimeout))
	if err != nil {
		return nil, fmt.Errorf("remote provider: %w", err)
	}
	return []analysis.Provider{client, engine}, nil
}

// Stop drains the queue, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping serve analysis service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing job store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "serve analysis service stopped")
}

// Submit registers a clip for asynchronous analysis. A clip already seen
// returns its existing job with Duplicate set.
func (s *Service) Submit(ctx context.Context, contentType string, data []byte) (types.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.Submission{}, ErrNotStarted
	}
	mediaType, err := checkUpload(contentType, data)
	if err != nil {
		return types.Submission{}, err
	}

	digest := dedupe.Digest(data)
	id := uuid.NewString()
	if existing, seen := s.deduper.SeenAndRecord(ctx, digest, id); seen {
		metrics.RecordUploadDuplicate()
		s.logger.Debug(ctx, "duplicate upload", logger.String("job", existing))
		job, err := s.store.Get(ctx, existing)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// The first submitter has recorded the digest but not created the job yet.
			return types.Submission{ID: existing, Status: model.StatusQueued, Duplicate: true}, nil
		case err != nil:
			return types.Submission{}, err
		}
		return types.Submission{ID: job.ID, Status: job.Status, Duplicate: true}, nil
	}

	job := model.Job{
		ID:          id,
		Digest:      digest,
		ContentType: mediaType,
		Status:      model.StatusQueued,
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, digest)
		return types.Submission{}, fmt.Errorf("create job: %w", err)
	}
	metrics.RecordJobStatus(string(model.StatusQueued))

	if reason := s.queue.Enqueue(ctx, model.Task{JobID: id, ContentType: mediaType, Data: data}); reason != nil {
		s.deduper.Unrecord(ctx, digest)
		if _, err := s.store.Update(ctx, id, repository.Fail(reason)); err != nil {
			s.logger.Warn(ctx, "failing rejected job", logger.String("job", id), logger.Error(err))
		}
		metrics.RecordJobStatus(string(model.StatusFailed))
		return types.Submission{}, reason
	}

	return types.Submission{ID: id, Status: model.StatusQueued}, nil
}

// Analyze runs the provider chain inline and returns the attributed result.
func (s *Service) Analyze(ctx context.Context, contentType string, data []byte) (analysis.Outcome, error) {
	s.mu.RLock()
	provider, started, timeout := s.provider, s.started, s.jobTimeout
	s.mu.RUnlock()

	if !started {
		return analysis.Outcome{}, ErrNotStarted
	}
	mediaType, err := checkUpload(contentType, data)
	if err != nil {
		return analysis.Outcome{}, err
	}

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(logger.ContextWith(ctx, logger.String("request", id)), timeout)
	defer cancel()
	return analysis.Run(ctx, provider, analysis.Request{
		ID:          id,
		ContentType: mediaType,
		Data:        data,
	})
}

// Job returns the current state of a job.
func (s *Service) Job(ctx context.Context, id string) (types.JobView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.JobView{}, ErrNotStarted
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return types.JobView{}, err
	}
	return types.NewJobView(job), nil
}

// Profiles returns the reference players and weights of the local engine.
func (s *Service) Profiles() types.ProfilesView {
	return types.ProfilesView{
		Profiles: s.table.Profiles(),
		Weights:  s.table.Weights(),
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		jobs := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["queueBytes"] = s.queue.Bytes()
		stats["jobsStored"] = jobs
		stats["uploadsSeen"] = s.deduper.Size()
		stats["providers"] = s.provider.Name()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateJobsStored(jobs)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}

// Size returns the current number of remembered upload digests.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func checkUpload(contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	mediaType, err := video.MediaType(contentType, data)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}

// IsBackpressure reports whether err means the queue could not take a job.
func IsBackpressure(err error) bool {
	return errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed)
}
