// Package variants expands canonical command phrases into the spellings a
// speech recogniser is likely to emit for them.
//
// Two rule tables drive the expansion: [PhonemeRules] (spelling confusions
// between English orthography and Indonesian pronunciation, e.g. "next" →
// "nekst") and the regional accent table selected by [Region] (final
// devoicing, vowel raising, labial shifts).
//
// Expansion is bounded. Let k be the number of rules that actually change a
// phrase. When all 2^k−1 rule combinations fit under the cap they are all
// generated; otherwise every rule is applied on its own. Output is sorted, so
// the same phrase and tables always produce the same set.
//
// Variants are computed once per command table at startup; nothing here is
// called per utterance.
package variants

import (
	"slices"
	"strings"

	"github.com/MrWong99/slidesense/pkg/command"
)

const defaultMaxVariants = 50

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithRegion selects the regional accent table. Default: [RegionMixed].
func WithRegion(r Region) Option {
	return func(g *Generator) {
		g.region = r
	}
}

// WithMaxVariants caps the number of variants generated per phrase.
// Default: 50. Non-positive values are ignored.
func WithMaxVariants(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxVariants = n
		}
	}
}

// WithRules replaces the phoneme rule table. Mostly useful in tests.
func WithRules(rules []Rule) Option {
	return func(g *Generator) {
		g.rules = slices.Clone(rules)
	}
}

// Generator produces phrase variants. It is read-only after construction and
// safe for concurrent use.
type Generator struct {
	rules       []Rule
	region      Region
	maxVariants int
}

// New returns a [Generator] configured with opts.
func New(opts ...Option) *Generator {
	g := &Generator{
		rules:       PhonemeRules,
		region:      RegionMixed,
		maxVariants: defaultMaxVariants,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GenerateVariants returns the phoneme variants of phrase under the default
// cap. The phrase itself is not included.
func GenerateVariants(phrase string) []string {
	return generate(normalize(phrase), PhonemeRules, defaultMaxVariants)
}

// AddRegionalVariants returns the accent variants of phrase for region under
// the default cap. The phrase itself is not included.
func AddRegionalVariants(phrase string, region Region) []string {
	return generate(normalize(phrase), RegionalRules(region), defaultMaxVariants)
}

// Variants returns the variants of phrase produced by the combined phoneme
// and regional tables under a single cap. The phrase itself is not included.
func (g *Generator) Variants(phrase string) []string {
	rules := append(slices.Clone(g.rules), RegionalRules(g.region)...)
	return generate(normalize(phrase), rules, g.maxVariants)
}

// Expand returns the variant set for a list of base phrases: the base phrases
// in their original order followed by every generated variant in sorted
// order, without duplicates.
func (g *Generator) Expand(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases)*8)
	for _, p := range phrases {
		p = normalize(p)
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	var generated []string
	for _, p := range out {
		for _, v := range g.Variants(p) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			generated = append(generated, v)
		}
	}
	slices.Sort(generated)
	return append(out, generated...)
}

// ExpandAll expands every definition of tbl.
func (g *Generator) ExpandAll(tbl *command.Table) map[command.ID][]string {
	out := make(map[command.ID][]string, tbl.Len())
	for _, d := range tbl.Definitions() {
		out[d.ID] = g.Expand(d.Phrases)
	}
	return out
}

// Collision records a phrase that appears in the variant sets of more than
// one command.
type Collision struct {
	Phrase   string
	Commands []command.ID
}

// Collisions reports every phrase shared between the expanded sets of
// different commands, in table order.
func Collisions(tbl *command.Table, expanded map[command.ID][]string) []Collision {
	owners := make(map[string][]command.ID)
	var order []string
	for _, d := range tbl.Definitions() {
		for _, p := range expanded[d.ID] {
			ids := owners[p]
			if len(ids) == 0 {
				order = append(order, p)
			}
			if !slices.Contains(ids, d.ID) {
				owners[p] = append(ids, d.ID)
			}
		}
	}

	var out []Collision
	for _, p := range order {
		if ids := owners[p]; len(ids) > 1 {
			out = append(out, Collision{Phrase: p, Commands: ids})
		}
	}
	return out
}

// generate applies rules to phrase and returns at most limit sorted variants.
func generate(phrase string, rules []Rule, limit int) []string {
	if phrase == "" || limit <= 0 {
		return nil
	}

	var active []Rule
	for _, r := range rules {
		if r.apply(phrase) != phrase {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}

	seen := map[string]struct{}{phrase: {}}
	var out []string
	add := func(v string) bool {
		if _, ok := seen[v]; ok {
			return true
		}
		if len(out) >= limit {
			return false
		}
		seen[v] = struct{}{}
		out = append(out, v)
		return true
	}

	k := len(active)
	if k < 31 && (1<<k)-1 <= limit {
		for mask := 1; mask < 1<<k; mask++ {
			v := phrase
			for i, r := range active {
				if mask&(1<<i) != 0 {
					v = r.apply(v)
				}
			}
			add(v)
		}
	} else {
		for _, r := range active {
			if !add(r.apply(phrase)) {
				break
			}
		}
	}

	slices.Sort(out)
	return out
}

func normalize(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}
