package service

import (
	"time"

	"github.com/okian/servecoach/internal/adapters/repository"
	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/analysis"
	"github.com/okian/servecoach/internal/domain/serve"
	"github.com/okian/servecoach/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithQueueBytes bounds the clip bytes waiting in the queue. Zero removes
// the bound.
func WithQueueBytes(n int64) Option {
	return func(s *Service) {
		if n >= 0 {
			s.queueBytes = n
		}
	}
}

// WithDedupeSize sets how many upload digests are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobTimeout bounds one analysis, queued or synchronous.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithSampling configures the local engine's frame sampler.
func WithSampling(rate float64, minSamples int, readyTimeout time.Duration) Option {
	return func(s *Service) {
		if rate > 0 {
			s.sampleRate = rate
		}
		if minSamples > 0 {
			s.minSamples = minSamples
		}
		if readyTimeout > 0 {
			s.readyTimeout = readyTimeout
		}
	}
}

// WithDecodeLimits bounds the clips the local engine will decode: canvas
// area, frame count and summed frame area. Non-positive values keep the
// defaults.
func WithDecodeLimits(maxPixels int64, maxFrames int, maxDecodedPixels int64) Option {
	return func(s *Service) {
		s.sourceOpts = []video.SourceOption{
			video.WithMaxPixels(maxPixels),
			video.WithMaxFrames(maxFrames),
			video.WithMaxDecodedPixels(maxDecodedPixels),
		}
	}
}

// WithProfileTable sets the reference players used by the local engine.
func WithProfileTable(t *serve.ProfileTable) Option {
	return func(s *Service) {
		if t != nil {
			s.table = t
		}
	}
}

// WithRemote enables the external pose pipeline ahead of the local engine.
func WithRemote(url string, timeout time.Duration) Option {
	return func(s *Service) {
		s.remoteURL = url
		s.remoteTimeout = timeout
	}
}

// WithSQLite stores jobs in the SQLite database at path instead of memory.
func WithSQLite(path string) Option {
	return func(s *Service) {
		s.sqlitePath = path
	}
}

// WithStore supplies a ready job store. It takes precedence over WithSQLite.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithProviders replaces the provider chain built at Start.
func WithProviders(providers ...analysis.Provider) Option {
	return func(s *Service) {
		if len(providers) > 0 {
			s.providers = providers
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
