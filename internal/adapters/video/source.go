// Package video provides seekable frame sources and the sampler that drives
// them to evenly spaced timestamps.
package video

import (
	"context"
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Source is a seekable, decodable video handle.
type Source interface {
	// WaitReady blocks until duration and dimensions are known and the
	// source accepts seeks.
	WaitReady(ctx context.Context) error

	// Duration returns the total playback time.
	Duration() time.Duration

	// Bounds returns the native frame rectangle.
	Bounds() image.Rectangle

	// Seek moves playback to t and blocks until the frame at t is current.
	Seek(ctx context.Context, t time.Duration) error

	// Frame returns the current frame scaled to width x height.
	Frame(width, height int) (*image.RGBA, error)
}

// SourceOption applies a configuration option to the built-in sources.
type SourceOption func(*sourceConfig)

// Decode limits applied to untrusted clips.
const (
	DefaultMaxPixels        = 3840 * 2160
	DefaultMaxFrames        = 1800
	DefaultMaxDecodedPixels = 256 << 20
)

type sourceConfig struct {
	scaler draw.Scaler

	maxPixels        int64
	maxFrames        int
	maxDecodedPixels int64
}

func defaultSourceConfig() sourceConfig {
	return sourceConfig{
		scaler:           draw.ApproxBiLinear,
		maxPixels:        DefaultMaxPixels,
		maxFrames:        DefaultMaxFrames,
		maxDecodedPixels: DefaultMaxDecodedPixels,
	}
}

// WithScaler sets the interpolator used when frames are read at a reduced
// resolution.
func WithScaler(s draw.Scaler) SourceOption {
	return func(c *sourceConfig) {
		if s != nil {
			c.scaler = s
		}
	}
}

// WithMaxPixels caps the canvas area (width x height) of a decoded clip.
func WithMaxPixels(n int64) SourceOption {
	return func(c *sourceConfig) {
		if n > 0 {
			c.maxPixels = n
		}
	}
}

// WithMaxFrames caps the number of frames in a decoded clip.
func WithMaxFrames(n int) SourceOption {
	return func(c *sourceConfig) {
		if n > 0 {
			c.maxFrames = n
		}
	}
}

// WithMaxDecodedPixels caps the summed area of all frames in a clip, which
// bounds the memory held by the decoder.
func WithMaxDecodedPixels(n int64) SourceOption {
	return func(c *sourceConfig) {
		if n > 0 {
			c.maxDecodedPixels = n
		}
	}
}

// scaleFrame renders src into a new width x height RGBA buffer.
func scaleFrame(s draw.Scaler, src image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	s.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// clampSeek keeps t inside the playable range, one millisecond short of the
// end so the last frame is still current.
func clampSeek(t, duration time.Duration) time.Duration {
	upper := max(time.Millisecond, duration-time.Millisecond)
	return max(0, min(t, upper))
}
