// Package worker runs queued analysis tasks and records their outcome.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/pkg/logger"
	"github.com/okian/servecoach/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultJobTimeout     = 60 * time.Second
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Task abstracts what workers read off the queue.
type Task = model.Task

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Jobs is the part of the job store workers write to.
type Jobs interface {
	Update(ctx context.Context, id string, fn repository.UpdateFunc) (model.Job, error)
}

// Worker analyzes tasks and stores their results.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue      Queue
	provider   analysis.Provider
	jobs       Jobs
	name       string
	jobTimeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, provider analysis.Provider, jobs Jobs, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		provider:   provider,
		jobs:       jobs,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			if err := w.process(ctx, task); err != nil {
				w.logger.Error(ctx, "error processing task",
					logger.String("job", task.JobID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one task through the provider chain and stores the outcome.
func (w *InMemoryWorker) process(ctx context.Context, task Task) error { //nolint:gocritic // hugeParam: Task is passed by value off the channel
	ctx = logger.ContextWith(ctx, logger.String("job", task.JobID))
	start := time.Now()
	metrics.AddWorkerBusy(1)
	defer func() {
		metrics.AddWorkerBusy(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if _, err := w.jobs.Update(ctx, task.JobID, repository.MarkRunning()); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("mark job %s running: %w", task.JobID, err)
	}
	metrics.RecordJobStatus(string(model.StatusRunning))

	jctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	out, err := analysis.Run(jctx, w.provider, analysis.Request{
		ID:          task.JobID,
		ContentType: task.ContentType,
		Data:        task.Data,
	})
	cancel()

	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "analysis_error")
		metrics.RecordErrorByType("analysis_error", "medium")
		w.logger.Warn(ctx, "analysis failed", logger.Error(err))
		if _, uerr := w.jobs.Update(ctx, task.JobID, repository.Fail(err)); uerr != nil {
			return fmt.Errorf("mark job %s failed: %w", task.JobID, uerr)
		}
		metrics.RecordJobStatus(string(model.StatusFailed))
		return nil
	}

	if _, err := w.jobs.Update(ctx, task.JobID, repository.Complete(out.Provider, out.Result)); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store result of job %s: %w", task.JobID, err)
	}
	metrics.RecordJobStatus(string(model.StatusDone))
	w.logger.Debug(ctx, "job done",
		logger.String("provider", out.Provider),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. opts apply to every worker; each worker
// is named after its index.
func NewPool(workerCount int, queue Queue, provider analysis.Provider, jobs Jobs, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(queue, provider, jobs, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop signals every worker and waits briefly for each.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		close(worker.shutdown)
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
