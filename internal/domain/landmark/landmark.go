// Package landmark locates the toss peak, contact and follow-through frames
// in a normalized motion-energy sequence.
//
// Contact and follow-through are fixed offsets from the toss peak derived
// from the sample rate. They are not detected independently.
package landmark

import (
	"math"

	"github.com/okian/servecoach/internal/domain/serve"
	"gonum.org/v1/gonum/floats"
)

// Default detection parameters.
const (
	DefaultRadius        = 3
	contactOffsetSec     = 0.2
	followThroughOffsetS = 0.3
)

// Landmarks holds indices into the motion-energy sequence.
// 0 <= PeakToss <= Contact <= FollowThrough < len(energy).
type Landmarks struct {
	PeakToss      int
	Contact       int
	FollowThrough int
}

// Detector finds landmarks for a given sample rate.
type Detector struct {
	sampleRate float64
	radius     int
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithRadius sets the moving-average radius.
func WithRadius(radius int) Option {
	return func(d *Detector) {
		if radius >= 0 {
			d.radius = radius
		}
	}
}

// NewDetector creates a detector for signals sampled at sampleRate frames per second.
func NewDetector(sampleRate float64, opts ...Option) *Detector {
	d := &Detector{
		sampleRate: sampleRate,
		radius:     DefaultRadius,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect smooths energy and places the three landmarks.
func (d *Detector) Detect(energy []float64) (Landmarks, error) {
	if len(energy) == 0 {
		return Landmarks{}, serve.ErrEmptySignal
	}
	last := len(energy) - 1

	// floats.MaxIdx returns the first index on ties.
	peak := floats.MaxIdx(Smooth(energy, d.radius))
	contact := min(last, peak+max(1, int(math.Floor(d.sampleRate*contactOffsetSec))))
	follow := min(last, contact+max(1, int(math.Floor(d.sampleRate*followThroughOffsetS))))

	return Landmarks{PeakToss: peak, Contact: contact, FollowThrough: follow}, nil
}

// Smooth applies a centered moving average of the given radius. Boundary
// samples average over the neighbours that exist.
func Smooth(values []float64, radius int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-radius)
		hi := min(len(values), i+radius+1)
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}
