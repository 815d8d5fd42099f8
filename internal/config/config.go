// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/okian/servecoach/internal/adapters/video"
	"github.com/okian/servecoach/internal/domain/serve"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`

	// QueueMaxBytes bounds the clip bytes waiting in the queue; 0 disables it.
	QueueMaxBytes int64 `koanf:"queue_max_bytes"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps how many upload digests are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxUploadBytes caps the body of POST /analyses.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// SampleRate is the frame sampling rate in samples per second.
	SampleRate float64 `koanf:"sample_rate"`

	// MinSamples is the lower bound on frames sampled per clip.
	MinSamples int `koanf:"min_samples"`

	// MaxPixels caps the canvas area of an uploaded clip.
	MaxPixels int64 `koanf:"max_pixels"`

	// MaxFrames caps the number of frames in an uploaded clip.
	MaxFrames int `koanf:"max_frames"`

	// MaxDecodedPixels caps the summed frame area the decoder may hold.
	MaxDecodedPixels int64 `koanf:"max_decoded_pixels"`

	// ReadyTimeoutMS bounds the wait for a video source to become readable.
	ReadyTimeoutMS int `koanf:"ready_timeout_ms"`

	// JobTimeoutMS bounds one queued analysis.
	JobTimeoutMS int `koanf:"job_timeout_ms"`

	// Store selects the job store: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file when Store is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// RemoteURL enables the external pose pipeline when set.
	RemoteURL string `koanf:"remote_url"`

	// RemoteTimeoutMS bounds one call to the pipeline.
	RemoteTimeoutMS int `koanf:"remote_timeout_ms"`

	// ProxyWeights overrides individual proxy weights.
	ProxyWeights map[string]float64 `koanf:"proxy_weights"`

	// Profiles replaces the built-in player table when non-empty.
	Profiles []serve.Profile `koanf:"profiles"`
}

// New creates a Config populated with defaults.
func New() *Config {
	weights := make(map[string]float64, len(serve.Proxies))
	for p, w := range serve.DefaultWeights() {
		weights[string(p)] = w
	}
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		QueueSize:        1024,
		QueueMaxBytes:    512 << 20,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		MaxUploadBytes:   32 << 20,
		SampleRate:       12,
		MinSamples:       video.DefaultMinSamples,
		MaxPixels:        video.DefaultMaxPixels,
		MaxFrames:        video.DefaultMaxFrames,
		MaxDecodedPixels: video.DefaultMaxDecodedPixels,
		ReadyTimeoutMS:   10_000,
		JobTimeoutMS:     60_000,
		Store:            StoreMemory,
		SQLitePath:       "servecoach.db",
		RemoteTimeoutMS:  20_000,
		ProxyWeights:     weights,
	}
}

// ReadyTimeout returns ReadyTimeoutMS as a duration.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutMS) * time.Millisecond
}

// JobTimeout returns JobTimeoutMS as a duration.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMS) * time.Millisecond
}

// RemoteTimeout returns RemoteTimeoutMS as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	case c.MinSamples < video.DefaultMinSamples:
		return fmt.Errorf("%w: min_samples must be at least %d", ErrInvalidConfig, video.DefaultMinSamples)
	case c.MaxPixels < 1 || c.MaxFrames < 1 || c.MaxDecodedPixels < 1:
		return fmt.Errorf("%w: decode limits must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.QueueMaxBytes < 0:
		return fmt.Errorf("%w: queue_max_bytes must not be negative", ErrInvalidConfig)
	case c.MaxUploadBytes < 1:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.ReadyTimeoutMS < 0 || c.JobTimeoutMS < 0 || c.RemoteTimeoutMS < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreSQLite:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must be set for the sqlite store", ErrInvalidConfig)
	}

	for name, w := range c.ProxyWeights {
		if !knownProxy(name) {
			return fmt.Errorf("%w: unknown proxy %q in proxy_weights", ErrInvalidConfig, name)
		}
		if w <= 0 {
			return fmt.Errorf("%w: weight of %s must be positive", ErrInvalidConfig, name)
		}
	}
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: profile %d has no name", ErrInvalidConfig, i)
		}
		for proxy, ref := range p.Refs {
			if !knownProxy(string(proxy)) {
				return fmt.Errorf("%w: profile %s: unknown proxy %q", ErrInvalidConfig, p.Name, proxy)
			}
			if ref < 0 || ref > 1 {
				return fmt.Errorf("%w: profile %s: %s reference %v outside [0,1]", ErrInvalidConfig, p.Name, proxy, ref)
			}
		}
	}
	return nil
}

// ProfileTable builds the scoring table from Profiles and ProxyWeights,
// falling back to the built-in players when none are configured.
func (c *Config) ProfileTable() (*serve.ProfileTable, error) {
	weights := serve.DefaultWeights()
	for name, w := range c.ProxyWeights {
		weights[serve.Proxy(name)] = w
	}
	profiles := c.Profiles
	if len(profiles) == 0 {
		profiles = serve.DefaultProfiles()
	}
	t, err := serve.NewProfileTable(profiles, weights)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return t, nil
}

func knownProxy(name string) bool {
	return slices.Contains(serve.Proxies, serve.Proxy(name))
}
