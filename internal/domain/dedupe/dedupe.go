// Package dedupe maps uploaded clip contents to the job that analyzes them,
// so resubmitting the same clip returns the earlier job.
package dedupe

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper records content digests and the job each one belongs to.
type Deduper interface {
	// SeenAndRecord atomically looks up digest. If it was seen, the owning
	// job id is returned with true. Otherwise jobID is recorded for it and
	// false is returned.
	SeenAndRecord(ctx context.Context, digest, jobID string) (string, bool)

	// Unrecord forgets digest, allowing the clip to be submitted again.
	// It is used when a recorded job could not be enqueued.
	Unrecord(ctx context.Context, digest string)

	Size() int64
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type entry struct {
	digest string
	jobID  string
}

// inMemoryDeduper keeps digests in insertion order. When bounded, the
// oldest digest is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, digest, jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[digest]; ok {
		return el.Value.(entry).jobID, true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[digest] = d.order.PushFront(entry{digest: digest, jobID: jobID})
	d.size.Add(1)
	return jobID, false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, digest string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[digest]; ok {
		d.order.Remove(el)
		delete(d.seen, digest)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(entry).digest)
	d.size.Add(-1)
}

// Size implements Deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
