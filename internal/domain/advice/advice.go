// Package advice turns the gap between a serve and its closest reference
// player into coaching tips.
package advice

import (
	"fmt"

	"github.com/okian/servecoach/internal/domain/serve"
)

// gapBudget is divided by a proxy's weight to obtain its tip threshold.
const gapBudget = 0.05

// Tip is the fixed text emitted for a deficient proxy.
type Tip struct {
	Label string
	How   string
}

// String renders the tip as shown to users.
func (t Tip) String() string { return t.Label + ": " + t.How }

var tips = map[serve.Proxy]Tip{
	serve.LowerBodyEngagement: {
		Label: "Use legs more in the loading phase",
		How:   "Deeper knee bend and drive up through your hips to transfer energy into the toss and upward jump. Try a slow-count load: 1-2 load, 3 explode.",
	},
	serve.ShoulderRotationProxy: {
		Label: "Add more shoulder and trunk rotation",
		How:   "Turn your hitting shoulder behind you in the trophy position and uncoil through contact. Keep non-dominant arm up longer to create stretch.",
	},
	serve.RacquetDropProxy: {
		Label: "Increase racquet drop",
		How:   "Relax your wrist and let the elbow lead so the racquet head drops behind your back before driving up (the 'scratch your back' feel).",
	},
}

// Encouragement is emitted when no proxy falls short of the matched player.
func Encouragement(player string) string {
	return fmt.Sprintf("Great job, your mechanics resemble %s. Focus on timing between toss, leg drive, and contact for even more efficiency.", player)
}

// Generator produces advice against a profile table.
type Generator struct {
	table *serve.ProfileTable
}

// NewGenerator creates a generator. A nil table selects the built-in profiles.
func NewGenerator(table *serve.ProfileTable) *Generator {
	if table == nil {
		table = serve.DefaultProfileTable()
	}
	return &Generator{table: table}
}

// Generate returns at least one tip for f measured against the top match.
func (g *Generator) Generate(f *serve.Features, top serve.SimilarityResult) ([]string, error) {
	profile, err := g.table.Lookup(top.Player)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, proxy := range serve.Proxies {
		ref, ok := profile.Ref(proxy)
		if !ok {
			continue
		}
		cur, _ := f.Proxy(proxy)
		if cur < ref && ref-cur > gapBudget/g.table.Weight(proxy) {
			out = append(out, tips[proxy].String())
		}
	}

	if len(out) == 0 {
		out = append(out, Encouragement(profile.Name))
	}
	return out, nil
}
