// Package motion turns sampled RGBA frames into a motion-energy signal and a
// motion-weighted centroid path.
//
// Extraction is two-phase. Add accumulates raw per-frame energy and centroids
// in sample order; Finish re-normalizes the complete energy sequence by its
// own maximum. Nothing downstream may consume energy before Finish.
package motion

import (
	"fmt"
	"image"
	"math"

	"github.com/okian/servecoach/internal/domain/serve"
	"gonum.org/v1/gonum/floats"
)

// Rec. 709 luma coefficients.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722

	maxLuma = 255.0

	// normFloor keeps a fully static clip at zero instead of NaN.
	normFloor = 1e-6
)

// Signal is the normalized output of an Extractor.
type Signal struct {
	// Raw holds the per-frame energy before re-normalization.
	Raw []float64
	// Energy is Raw divided by max(Raw); the strongest frame is 1.
	Energy []float64
	// Centroids holds one motion-weighted centroid per frame.
	Centroids []serve.Point
}

// Len returns the number of frames in the signal.
func (s Signal) Len() int { return len(s.Energy) }

// Extractor accumulates frame-to-frame motion. It is not safe for concurrent
// use; each analysis owns its own Extractor.
type Extractor struct {
	width, height int
	prev, cur     []float64
	raw           []float64
	centroids     []serve.Point
}

// NewExtractor returns an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Len returns the number of frames added so far.
func (e *Extractor) Len() int { return len(e.raw) }

// Add processes the next frame in time order. All frames must share the
// dimensions of the first one.
func (e *Extractor) Add(frame *image.RGBA) error {
	if frame == nil {
		return ErrNilFrame
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%dx%d: %w", w, h, ErrFrameSize)
	}
	if e.raw == nil {
		e.width, e.height = w, h
		e.prev = make([]float64, w*h)
		e.cur = make([]float64, w*h)
	} else if w != e.width || h != e.height {
		return fmt.Errorf("got %dx%d, want %dx%d: %w", w, h, e.width, e.height, ErrFrameSize)
	}

	Luma(frame, e.cur)
	first := len(e.raw) == 0

	var sum, mass, cx, cy float64
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			v := e.cur[row+x]
			if !first {
				v = math.Abs(v - e.prev[row+x])
			}
			sum += v
			mass += v
			cx += v * float64(x)
			cy += v * float64(y)
		}
	}

	e.raw = append(e.raw, clamp01(sum/(float64(w*h)*maxLuma)))
	if mass > 0 {
		e.centroids = append(e.centroids, serve.Point{X: cx / mass / float64(w), Y: cy / mass / float64(h)})
	} else {
		e.centroids = append(e.centroids, serve.Point{X: 0.5, Y: 0.5})
	}

	e.prev, e.cur = e.cur, e.prev
	return nil
}

// Finish normalizes the accumulated energy and returns the signal.
// The Extractor must not be reused afterwards.
func (e *Extractor) Finish() (Signal, error) {
	if len(e.raw) == 0 {
		return Signal{}, serve.ErrEmptySignal
	}
	raw := make([]float64, len(e.raw))
	copy(raw, e.raw)
	centroids := make([]serve.Point, len(e.centroids))
	copy(centroids, e.centroids)

	return Signal{
		Raw:       raw,
		Energy:    Normalize(raw),
		Centroids: centroids,
	}, nil
}

// Normalize divides values by their maximum, floored at a small epsilon so an
// all-zero sequence stays all-zero. The input is not modified.
func Normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	// Divide rather than scale by the reciprocal so the peak lands on exactly 1.
	peak := math.Max(normFloor, floats.Max(values))
	for i, v := range values {
		out[i] = v / peak
	}
	return out
}

// Luma writes the Rec. 709 luma of every pixel of frame into dst in row-major
// order. dst must hold at least width*height values.
func Luma(frame *image.RGBA, dst []float64) {
	b := frame.Bounds()
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := frame.PixOffset(b.Min.X, y)
		row := (y - b.Min.Y) * w
		for x := 0; x < w; x++ {
			p := frame.Pix[off+x*4 : off+x*4+3 : off+x*4+3]
			dst[row+x] = lumaR*float64(p[0]) + lumaG*float64(p[1]) + lumaB*float64(p[2])
		}
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
