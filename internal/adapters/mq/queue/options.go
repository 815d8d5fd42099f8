package queue

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of waiting tasks.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithMaxBytes bounds the clip bytes held by waiting tasks. Zero means no
// byte bound.
func WithMaxBytes(n int64) Option {
	return func(q *InMemoryQueue) {
		if n >= 0 {
			q.maxBytes = n
		}
	}
}
