package serve

import (
	"fmt"
	"maps"
)

// Profile is a named reference set of proxy values for one player.
// Refs may omit proxies.
type Profile struct {
	Name string            `json:"name" koanf:"name"`
	Refs map[Proxy]float64 `json:"refs" koanf:"refs"`
}

// Ref returns the reference value for p, if the profile defines one.
func (p Profile) Ref(proxy Proxy) (float64, bool) {
	v, ok := p.Refs[proxy]
	return v, ok
}

// Weights maps each proxy to its relative importance.
type Weights map[Proxy]float64

// DefaultWeights are the proxy weights used for scoring and advice thresholds.
func DefaultWeights() Weights {
	return Weights{
		LowerBodyEngagement:   1.2,
		ShoulderRotationProxy: 1.1,
		RacquetDropProxy:      1.0,
	}
}

// DefaultProfiles returns the built-in reference players in declaration order.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "Nishikori", Refs: map[Proxy]float64{LowerBodyEngagement: 0.65, ShoulderRotationProxy: 0.6, RacquetDropProxy: 0.55}},
		{Name: "Federer", Refs: map[Proxy]float64{LowerBodyEngagement: 0.75, ShoulderRotationProxy: 0.8, RacquetDropProxy: 0.85}},
		{Name: "Djokovic", Refs: map[Proxy]float64{LowerBodyEngagement: 0.85, ShoulderRotationProxy: 0.7, RacquetDropProxy: 0.7}},
		{Name: "Alcaraz", Refs: map[Proxy]float64{LowerBodyEngagement: 0.88, ShoulderRotationProxy: 0.82, RacquetDropProxy: 0.8}},
	}
}

// ProfileTable is an immutable lookup of player profiles and proxy weights.
// It is safe for concurrent use.
type ProfileTable struct {
	profiles []Profile
	index    map[string]int
	weights  Weights
}

// NewProfileTable copies profiles and weights into a read-only table.
// A nil weights map selects DefaultWeights.
func NewProfileTable(profiles []Profile, weights Weights) (*ProfileTable, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	t := &ProfileTable{
		profiles: make([]Profile, 0, len(profiles)),
		index:    make(map[string]int, len(profiles)),
		weights:  maps.Clone(weights),
	}
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile without name: %w", ErrUnknownProfile)
		}
		if _, dup := t.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		t.index[p.Name] = len(t.profiles)
		t.profiles = append(t.profiles, Profile{Name: p.Name, Refs: maps.Clone(p.Refs)})
	}
	return t, nil
}

// DefaultProfileTable returns the built-in four-player table.
func DefaultProfileTable() *ProfileTable {
	t, err := NewProfileTable(DefaultProfiles(), DefaultWeights())
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of profiles.
func (t *ProfileTable) Len() int { return len(t.profiles) }

// Profiles returns a copy of the profiles in declaration order.
func (t *ProfileTable) Profiles() []Profile {
	out := make([]Profile, len(t.profiles))
	for i, p := range t.profiles {
		out[i] = Profile{Name: p.Name, Refs: maps.Clone(p.Refs)}
	}
	return out
}

// Lookup finds a profile by player name.
func (t *ProfileTable) Lookup(name string) (Profile, error) {
	i, ok := t.index[name]
	if !ok {
		return Profile{}, fmt.Errorf("%q: %w", name, ErrUnknownProfile)
	}
	return t.profiles[i], nil
}

// Weight returns the weight for proxy, or 1 when it is not configured.
func (t *ProfileTable) Weight(p Proxy) float64 {
	if w, ok := t.weights[p]; ok {
		return w
	}
	return 1
}

// Weights returns a copy of the configured weights.
func (t *ProfileTable) Weights() Weights { return maps.Clone(t.weights) }
