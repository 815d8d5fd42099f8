// Package regions aggregates motion energy by the spatial half its centroid
// falls in and derives three crude engagement proxies from it.
package regions

import (
	"fmt"
	"math"

	"github.com/okian/servecoach/internal/domain/serve"
	"gonum.org/v1/gonum/stat"
)

// Split thresholds and proxy gains.
const (
	lowerThresholdY = 0.6
	rightThresholdX = 0.5

	lowerBodyGain = 2.0
	rotationGain  = 4.0
	racquetGain   = 1.2
)

// Halves holds the mean energy attributed to each spatial half. Every mean
// is taken over all frames, frames outside the half contributing zero.
type Halves struct {
	Lower, Upper float64
	Left, Right  float64
}

// Proxies are the derived engagement values, each in [0,1].
type Proxies struct {
	LowerBodyEngagement   float64
	ShoulderRotationProxy float64
	RacquetDropProxy      float64
}

// Split attributes each frame's energy to the halves its centroid lies in.
func Split(energy []float64, centroids []serve.Point) (Halves, error) {
	if len(energy) == 0 {
		return Halves{}, serve.ErrEmptySignal
	}
	if len(energy) != len(centroids) {
		return Halves{}, fmt.Errorf("%d energies, %d centroids: %w", len(energy), len(centroids), ErrLengthMismatch)
	}

	lower := make([]float64, len(energy))
	upper := make([]float64, len(energy))
	left := make([]float64, len(energy))
	right := make([]float64, len(energy))
	for i, c := range centroids {
		if c.Y > lowerThresholdY {
			lower[i] = energy[i]
		} else {
			upper[i] = energy[i]
		}
		if c.X < rightThresholdX {
			left[i] = energy[i]
		} else {
			right[i] = energy[i]
		}
	}

	return Halves{
		Lower: stat.Mean(lower, nil),
		Upper: stat.Mean(upper, nil),
		Left:  stat.Mean(left, nil),
		Right: stat.Mean(right, nil),
	}, nil
}

// Derive converts half means into clamped proxies.
func Derive(h Halves) Proxies {
	return Proxies{
		LowerBodyEngagement:   clamp01(h.Lower * lowerBodyGain),
		ShoulderRotationProxy: clamp01(math.Abs(h.Right-h.Left) * rotationGain),
		RacquetDropProxy:      clamp01(h.Upper * racquetGain),
	}
}

// Compute is Split followed by Derive.
func Compute(energy []float64, centroids []serve.Point) (Proxies, error) {
	h, err := Split(energy, centroids)
	if err != nil {
		return Proxies{}, err
	}
	return Derive(h), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
