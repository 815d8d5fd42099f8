// Package dedupe maps uploaded clip contents to the job that analyzes them.
package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of digests to keep in memory.
// If maxSize > 0 the oldest digest is evicted first; otherwise the deduper
// is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
