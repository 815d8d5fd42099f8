// Package scoring ranks a serve against the reference player profiles.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/servecoach/internal/domain/serve"
	"gonum.org/v1/gonum/stat"
)

// Scoring constants.
const (
	maxScoreValue = 100
	// worstDelta applies when a profile defines none of the proxies.
	worstDelta = 1.0
)

// Option applies a configuration option to the ProfileScorer.
type Option func(*ProfileScorer)

// WithProfileTable replaces the built-in profile table.
func WithProfileTable(table *serve.ProfileTable) Option {
	return func(s *ProfileScorer) {
		if table != nil {
			s.table = table
		}
	}
}

// Scorer computes similarity results for a set of features.
type Scorer interface {
	// Score returns one result per profile, ordered by descending score.
	Score(f *serve.Features) []serve.SimilarityResult
}

// ProfileScorer implements Scorer with a weighted mean absolute deviation
// over the proxies each profile defines.
type ProfileScorer struct {
	table *serve.ProfileTable
}

// NewProfileScorer creates a scorer over the default profile table unless
// overridden by options.
func NewProfileScorer(opts ...Option) *ProfileScorer {
	s := &ProfileScorer{
		table: serve.DefaultProfileTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the profile table the scorer uses.
func (s *ProfileScorer) Table() *serve.ProfileTable { return s.table }

// Score compares f with every profile. Ties keep profile declaration order.
func (s *ProfileScorer) Score(f *serve.Features) []serve.SimilarityResult {
	profiles := s.table.Profiles()
	results := make([]serve.SimilarityResult, 0, len(profiles))
	for _, p := range profiles {
		results = append(results, s.compare(f, p))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func (s *ProfileScorer) compare(f *serve.Features, p serve.Profile) serve.SimilarityResult {
	deltas := make(map[serve.Proxy]float64, len(serve.Proxies))
	var values, weights []float64
	for _, proxy := range serve.Proxies {
		ref, ok := p.Ref(proxy)
		if !ok {
			continue
		}
		v, _ := f.Proxy(proxy)
		d := math.Abs(v - ref)
		deltas[proxy] = d
		values = append(values, d)
		weights = append(weights, s.table.Weight(proxy))
	}

	avgDelta := worstDelta
	if len(values) > 0 {
		avgDelta = stat.Mean(values, weights)
	}

	return serve.SimilarityResult{
		Player: p.Name,
		Score:  ScoreFromDelta(avgDelta),
		Deltas: deltas,
	}
}

// ScoreFromDelta maps an average delta to an integer score in [0,100].
func ScoreFromDelta(avgDelta float64) int {
	similarity := math.Max(0, math.Min(1, 1-avgDelta))
	return int(math.Round(similarity * maxScoreValue))
}
