// Package queue hands analysis tasks from the HTTP layer to the workers.
// Tasks carry whole clips, so the in-memory queue is bounded both by task
// count and by the bytes it holds.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/pkg/metrics"
)

const defaultCapacity = 1024

// Task is one queued clip.
type Task = model.Task

// Queue accepts tasks without blocking and streams them to consumers.
type Queue interface {
	// Enqueue adds t or reports why it could not: ErrClosed, ErrFull or the
	// context's error.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue streams tasks in enqueue order until the queue is closed and
	// drained, or ctx ends.
	Dequeue(ctx context.Context) <-chan Task

	// Len is the number of waiting tasks.
	Len(ctx context.Context) int

	// Bytes is the clip payload currently held.
	Bytes() int64

	Close() error
	IsClosed() bool
}

// InMemoryQueue is a Queue over a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	maxBytes int64
	bytes    atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return q.reject("closed", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return q.reject("context_cancelled", err)
	}

	size := int64(len(t.Data))
	held := q.bytes.Add(size)
	if q.maxBytes > 0 && held > q.maxBytes {
		q.bytes.Add(-size)
		return q.reject("bytes_exceeded", fmt.Errorf("%d of %d bytes held: %w", held-size, q.maxBytes, ErrFull))
	}

	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		q.bytes.Add(-size)
		return q.reject("queue_full", ErrFull)
	}
}

func (q *InMemoryQueue) reject(kind string, err error) error {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", kind)
	return err
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			// Bytes are released once the task leaves the buffer.
			q.bytes.Add(-int64(len(t.Data)))
			q.observe()
			select {
			case out <- t:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.observe()
}

// Bytes implements Queue.
func (q *InMemoryQueue) Bytes() int64 { return q.bytes.Load() }

// Cap is the maximum number of waiting tasks.
func (q *InMemoryQueue) Cap() int { return q.capacity }

func (q *InMemoryQueue) observe() int {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close stops accepting tasks. Waiting tasks are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		close(q.tasks)
		q.closed = true
	}
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
