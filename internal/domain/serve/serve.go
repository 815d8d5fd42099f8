// Package serve contains the data model shared by the serve analysis stages.
package serve

// Point is a position in normalized image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Proxy names one of the scalar engagement proxies derived from motion.
type Proxy string

// Known proxies, in the fixed order used by scoring and advice.
const (
	LowerBodyEngagement   Proxy = "lowerBodyEngagement"
	ShoulderRotationProxy Proxy = "shoulderRotationProxy"
	RacquetDropProxy      Proxy = "racquetDropProxy"
)

// Proxies lists every proxy in evaluation order.
var Proxies = []Proxy{LowerBodyEngagement, ShoulderRotationProxy, RacquetDropProxy}

// Features is the motion-derived description of one serve clip.
type Features struct {
	DurationMs            float64   `json:"durationMs"`
	MotionEnergy          []float64 `json:"motionEnergy"`
	CentroidPath          []Point   `json:"centroidPath"`
	PeakTossIndex         int       `json:"peakTossIndex"`
	ContactIndex          int       `json:"contactIndex"`
	FollowThroughIndex    int       `json:"followThroughIndex"`
	LowerBodyEngagement   float64   `json:"lowerBodyEngagement"`
	ShoulderRotationProxy float64   `json:"shoulderRotationProxy"`
	RacquetDropProxy      float64   `json:"racquetDropProxy"`
}

// Proxy returns the value of the named proxy and whether the name is known.
func (f *Features) Proxy(p Proxy) (float64, bool) {
	switch p {
	case LowerBodyEngagement:
		return f.LowerBodyEngagement, true
	case ShoulderRotationProxy:
		return f.ShoulderRotationProxy, true
	case RacquetDropProxy:
		return f.RacquetDropProxy, true
	default:
		return 0, false
	}
}

// SimilarityResult scores the user against one player profile.
type SimilarityResult struct {
	Player string            `json:"player"`
	Score  int               `json:"score"`
	Deltas map[Proxy]float64 `json:"deltas"`
}

// AnalysisResult is the full output of one analysis.
// Similarities are ordered by descending score.
type AnalysisResult struct {
	Features     Features           `json:"features"`
	Similarities []SimilarityResult `json:"similarities"`
	Advice       []string           `json:"advice"`
}

// Top returns the closest match.
func (r *AnalysisResult) Top() (SimilarityResult, error) {
	if len(r.Similarities) == 0 {
		return SimilarityResult{}, ErrNoSimilarities
	}
	return r.Similarities[0], nil
}
