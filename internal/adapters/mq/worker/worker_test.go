package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/servecoach/internal/adapters/mq/queue"
	"github.com/okian/servecoach/internal/adapters/mq/worker"
	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/internal/domain/serve"
	logging "github.com/okian/servecoach/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type stubProvider struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Analyze(ctx context.Context, req analysis.Request) (serve.AnalysisResult, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return serve.AnalysisResult{}, ctx.Err()
		}
	}
	if p.err != nil {
		return serve.AnalysisResult{}, p.err
	}
	return serve.AnalysisResult{
		Similarities: []serve.SimilarityResult{{Player: "Federer", Score: 90}},
		Advice:       []string{"keep it up: " + req.ID},
	}, nil
}

func submit(ctx context.Context, store repository.Store, q queue.Queue, id string) {
	convey.So(store.Create(ctx, model.Job{ID: id, Status: model.StatusQueued, ContentType: "image/gif"}), convey.ShouldBeNil)
	convey.So(q.Enqueue(ctx, model.Task{JobID: id, ContentType: "image/gif", Data: []byte(id)}), convey.ShouldBeNil)
}

func waitTerminal(ctx context.Context, store repository.Store, id string) model.Job {
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := store.Get(ctx, id)
		if err == nil && job.Status.Terminal() {
			return job
		}
		if time.Now().After(deadline) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := repository.NewMemoryStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))

		convey.Convey("When the provider succeeds", func() {
			p := &stubProvider{name: "local"}
			w := worker.NewInMemoryWorker(q, p, store, worker.WithName("test-worker"))
			go w.Run(ctx)

			submit(ctx, store, q, "job-ok")
			job := waitTerminal(ctx, store, "job-ok")

			convey.Convey("Then the job is done with the result attributed", func() {
				convey.So(job.Status, convey.ShouldEqual, model.StatusDone)
				convey.So(job.Provider, convey.ShouldEqual, "local")
				convey.So(job.Result, convey.ShouldNotBeNil)
				convey.So(job.Result.Advice, convey.ShouldResemble, []string{"keep it up: job-ok"})
				convey.So(job.Error, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the provider fails", func() {
			p := &stubProvider{name: "local", err: errors.New("decode failed")}
			w := worker.NewInMemoryWorker(q, p, store)
			go w.Run(ctx)

			submit(ctx, store, q, "job-bad")
			job := waitTerminal(ctx, store, "job-bad")

			convey.Convey("Then the job is failed with the reason", func() {
				convey.So(job.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(job.Error, convey.ShouldContainSubstring, "decode failed")
				convey.So(job.Result, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the analysis outlives the job timeout", func() {
			p := &stubProvider{name: "slow", delay: time.Second}
			w := worker.NewInMemoryWorker(q, p, store, worker.WithJobTimeout(20*time.Millisecond))
			go w.Run(ctx)

			submit(ctx, store, q, "job-slow")
			job := waitTerminal(ctx, store, "job-slow")

			convey.Convey("Then the job fails with a deadline error", func() {
				convey.So(job.Status, convey.ShouldEqual, model.StatusFailed)
				convey.So(job.Error, convey.ShouldContainSubstring, context.DeadlineExceeded.Error())
			})
		})

		convey.Convey("When the provider is a fallback chain", func() {
			remote := &stubProvider{name: "remote", err: errors.New("unreachable")}
			local := &stubProvider{name: "local"}
			w := worker.NewInMemoryWorker(q, analysis.NewFallback(remote, local), store)
			go w.Run(ctx)

			submit(ctx, store, q, "job-chain")
			job := waitTerminal(ctx, store, "job-chain")

			convey.Convey("Then the answering provider is recorded", func() {
				convey.So(job.Status, convey.ShouldEqual, model.StatusDone)
				convey.So(job.Provider, convey.ShouldEqual, "local")
				convey.So(remote.calls.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the task has no stored job", func() {
			p := &stubProvider{name: "local"}
			w := worker.NewInMemoryWorker(q, p, store)
			go w.Run(ctx)

			convey.So(q.Enqueue(ctx, model.Task{JobID: "ghost"}), convey.ShouldBeNil)
			submit(ctx, store, q, "job-after")
			job := waitTerminal(ctx, store, "job-after")

			convey.Convey("Then the provider is skipped and the worker keeps going", func() {
				convey.So(job.Status, convey.ShouldEqual, model.StatusDone)
				convey.So(p.calls.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When shutting down", func() {
			w := worker.NewInMemoryWorker(q, &stubProvider{name: "local"}, store)
			go w.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := repository.NewMemoryStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		p := &stubProvider{name: "local", delay: 5 * time.Millisecond}

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, p, store)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many jobs", func() {
			pool := worker.NewPool(4, q, p, store, worker.WithJobTimeout(time.Second))
			pool.Start(ctx)

			ids := make([]string, 12)
			for i := range ids {
				ids[i] = fmt.Sprintf("job-%d", i)
				submit(ctx, store, q, ids[i])
			}

			convey.Convey("Then every job reaches done exactly once", func() {
				for _, id := range ids {
					job := waitTerminal(ctx, store, id)
					convey.So(job.Status, convey.ShouldEqual, model.StatusDone)
				}
				convey.So(p.calls.Load(), convey.ShouldEqual, len(ids))
			})

			convey.Convey("Then shutdown drains and returns", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
