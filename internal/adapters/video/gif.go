package video

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// GIF delays are in hundredths of a second. Browsers play very short delays
// at 100ms, and so do we.
const (
	gifDelayUnit    = 10 * time.Millisecond
	gifMinDelay     = 2
	gifDefaultDelay = 10
)

// GIF block introducers.
const (
	gifExtension  = 0x21
	gifDescriptor = 0x2C
	gifTrailer    = 0x3B
)

var errMalformedGIF = errors.New("gif: malformed block structure")

// GIFSource plays a decoded animated GIF. Frames stay paletted and are
// composed onto a single canvas when read; seeking backwards replays from
// the first frame.
type GIFSource struct {
	cfg      sourceConfig
	g        *gif.GIF
	starts   []time.Duration
	duration time.Duration
	bounds   image.Rectangle

	mu       sync.Mutex
	current  int
	composed int
	canvas   *image.RGBA
	restore  *image.RGBA
}

// NewGIFSource decodes an animated GIF from r. The block structure is
// checked against the decode limits before any frame is decompressed.
func NewGIFSource(r io.Reader, opts ...SourceOption) (*GIFSource, error) {
	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gif: %w", err)
	}
	layout, err := scanGIF(data)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if err := layout.check(cfg); err != nil {
		return nil, err
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}

	s := &GIFSource{cfg: cfg, g: g, composed: -1}
	s.bounds = image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if s.bounds.Empty() {
		s.bounds = g.Image[0].Bounds()
	}

	s.starts = make([]time.Duration, len(g.Image))
	var elapsed time.Duration
	for i := range g.Image {
		s.starts[i] = elapsed
		delay := gifDefaultDelay
		if i < len(g.Delay) && g.Delay[i] >= gifMinDelay {
			delay = g.Delay[i]
		}
		elapsed += time.Duration(delay) * gifDelayUnit
	}
	s.duration = elapsed
	return s, nil
}

// OpenGIF is a convenience wrapper for in-memory GIF data.
func OpenGIF(data []byte, opts ...SourceOption) (*GIFSource, error) {
	return NewGIFSource(bytes.NewReader(data), opts...)
}

// gifLayout is what the block structure declares, read without decoding.
type gifLayout struct {
	width, height int
	frames        int
	area          int64
}

func (l gifLayout) check(cfg sourceConfig) error {
	switch {
	case int64(l.width)*int64(l.height) > cfg.maxPixels:
		return fmt.Errorf("%w: canvas %dx%d", ErrTooLarge, l.width, l.height)
	case l.frames > cfg.maxFrames:
		return fmt.Errorf("%w: %d frames", ErrTooLarge, l.frames)
	case l.area > cfg.maxDecodedPixels:
		return fmt.Errorf("%w: %d decoded pixels", ErrTooLarge, l.area)
	}
	return nil
}

// scanGIF walks the GIF blocks, counting frames and their declared area.
// Image data is skipped, not decompressed.
func scanGIF(data []byte) (gifLayout, error) {
	var l gifLayout
	if len(data) < 13 || string(data[:3]) != "GIF" {
		return l, errMalformedGIF
	}
	l.width = int(binary.LittleEndian.Uint16(data[6:]))
	l.height = int(binary.LittleEndian.Uint16(data[8:]))
	pos := 13 + colorTableSize(data[10])

	var err error
	for pos < len(data) {
		switch data[pos] {
		case gifExtension:
			pos, err = skipSubBlocks(data, pos+2)
		case gifDescriptor:
			if pos+10 > len(data) {
				return l, errMalformedGIF
			}
			w := int64(binary.LittleEndian.Uint16(data[pos+5:]))
			h := int64(binary.LittleEndian.Uint16(data[pos+7:]))
			l.frames++
			l.area += w * h
			// Descriptor, local color table, LZW minimum code size.
			pos += 10 + colorTableSize(data[pos+9]) + 1
			pos, err = skipSubBlocks(data, pos)
		case gifTrailer:
			return l, nil
		default:
			return l, errMalformedGIF
		}
		if err != nil {
			return l, err
		}
	}
	return l, nil
}

func colorTableSize(packed byte) int {
	if packed&0x80 == 0 {
		return 0
	}
	return 3 << (packed&0x07 + 1)
}

func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return pos, errMalformedGIF
		}
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, nil
		}
		pos += n
	}
}

// render composes frames onto the canvas up to idx. Caller holds mu.
func (s *GIFSource) render(idx int) *image.RGBA {
	if s.canvas == nil {
		s.canvas = image.NewRGBA(s.bounds)
	}
	if idx < s.composed {
		clear(s.canvas.Pix)
		s.composed = -1
	}
	for s.composed < idx {
		if s.composed >= 0 {
			s.dispose(s.composed)
		}
		next := s.composed + 1
		if s.disposal(next) == gif.DisposalPrevious {
			if s.restore == nil {
				s.restore = image.NewRGBA(s.bounds)
			}
			copy(s.restore.Pix, s.canvas.Pix)
		}
		frame := s.g.Image[next]
		draw.Draw(s.canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		s.composed = next
	}
	return s.canvas
}

func (s *GIFSource) dispose(i int) {
	switch s.disposal(i) {
	case gif.DisposalBackground:
		draw.Draw(s.canvas, s.g.Image[i].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		copy(s.canvas.Pix, s.restore.Pix)
	}
}

func (s *GIFSource) disposal(i int) byte {
	if i < len(s.g.Disposal) {
		return s.g.Disposal[i]
	}
	return gif.DisposalNone
}

// WaitReady implements Source.
func (s *GIFSource) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

// Duration implements Source.
func (s *GIFSource) Duration() time.Duration { return s.duration }

// Bounds implements Source.
func (s *GIFSource) Bounds() image.Rectangle { return s.bounds }

// FrameCount returns the number of frames in the animation.
func (s *GIFSource) FrameCount() int { return len(s.g.Image) }

// Seek implements Source.
func (s *GIFSource) Seek(ctx context.Context, t time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t = clampSeek(t, s.duration) + time.Microsecond
	// Last frame starting at or before t.
	idx := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] > t }) - 1
	idx = max(0, idx)

	s.mu.Lock()
	s.current = idx
	s.mu.Unlock()
	return nil
}

// Frame implements Source.
func (s *GIFSource) Frame(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return scaleFrame(s.cfg.scaler, s.render(s.current), width, height)
}
