package video

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"
)

// frameEpsilon absorbs nanosecond truncation of sample timestamps.
const frameEpsilon = 1e-6

// SequenceSource plays an in-memory list of frames at a fixed frame rate.
// It is ready as soon as it is constructed.
type SequenceSource struct {
	cfg    sourceConfig
	frames []image.Image
	fps    float64
	bounds image.Rectangle

	mu      sync.Mutex
	current int
}

// NewSequenceSource creates a source from frames shown at fps frames per second.
func NewSequenceSource(frames []image.Image, fps float64, opts ...SourceOption) (*SequenceSource, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if fps <= 0 {
		return nil, fmt.Errorf("fps %v: %w", fps, ErrInvalidRate)
	}
	s := &SequenceSource{
		cfg:    defaultSourceConfig(),
		frames: frames,
		fps:    fps,
		bounds: frames[0].Bounds(),
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s, nil
}

// WaitReady implements Source.
func (s *SequenceSource) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

// Duration implements Source.
func (s *SequenceSource) Duration() time.Duration {
	return time.Duration(float64(len(s.frames)) / s.fps * float64(time.Second))
}

// Bounds implements Source.
func (s *SequenceSource) Bounds() image.Rectangle { return s.bounds }

// Seek implements Source.
func (s *SequenceSource) Seek(ctx context.Context, t time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t = clampSeek(t, s.Duration())
	idx := int(math.Floor(t.Seconds()*s.fps + frameEpsilon))
	idx = max(0, min(len(s.frames)-1, idx))

	s.mu.Lock()
	s.current = idx
	s.mu.Unlock()
	return nil
}

// Frame implements Source.
func (s *SequenceSource) Frame(width, height int) (*image.RGBA, error) {
	s.mu.Lock()
	frame := s.frames[s.current]
	s.mu.Unlock()
	return scaleFrame(s.cfg.scaler, frame, width, height)
}
