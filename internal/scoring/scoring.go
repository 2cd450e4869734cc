// Package scoring ranks every command of a [command.Table] against a single
// utterance.
//
// Each (command, phrase) pair is scored by the first rule of a fixed ladder
// that applies:
//
//  1. Exact: the utterance equals the phrase. Score weight+20.
//  2. Containment: one contains the other. Score weight+10.
//  3. Overlap: at least two whole words are shared. Score weight+3n.
//     3b. Loose overlap (optional): one shared word longer than three
//     letters. Score weight-5, kept only when positive.
//  4. Fuzzy: the normalised Levenshtein ratio reaches the fuzzy threshold.
//     Score weight+ratio/20.
//  5. Phonetic: the Soundex or primary Double Metaphone codes of the
//     space-stripped strings agree. Score weight+2.
//
// A command's score is the best over its phrases. The ladder stops at the
// first rule that applies, so a loose overlap hides a fuzzy ratio that would
// have scored higher for the same phrase.
//
// [ContextRule]s then shift whole-command scores when the utterance mentions
// a topic word: "stop the caption" is about captions, not about stopping the
// program. Commands are ranked by score, then weight, then table order, so
// equal scores always resolve the same way.
//
// Fuzzy and phonetic matching are provided by github.com/antzucaro/matchr.
// Either can be switched off at construction with [WithStrategies]; the
// remaining rules keep working unchanged.
package scoring

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/slidesense/pkg/command"
)

const (
	exactBonus       = 20
	containmentBonus = 10
	overlapPerWord   = 3
	loosePenalty     = 5
	phoneticBonus    = 2

	minOverlapWords    = 2
	minLooseWordLength = 4
	minPhoneticCode    = 3

	defaultFuzzyThreshold = 85

	// contextShift is what a matching [ContextRule] adds to or removes from
	// a command's score.
	contextShift = 5
)

// ContextRule boosts and demotes commands when any utterance word starts
// with one of Prefixes.
type ContextRule struct {
	Prefixes []string
	Boost    []command.ID
	Demote   []command.ID
}

// DefaultContextRules resolves the clash between the bare "stop" phrase and
// the caption commands.
func DefaultContextRules() []ContextRule {
	return []ContextRule{{
		Prefixes: []string{"caption", "subtitle"},
		Boost:    []command.ID{command.CaptionOn, command.CaptionOff},
		Demote:   []command.ID{command.Stop},
	}}
}

func (r ContextRule) applies(words map[string]struct{}) bool {
	for w := range words {
		for _, p := range r.Prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}

// shift returns the adjustment r makes to id.
func (r ContextRule) shift(id command.ID) float64 {
	switch {
	case slices.Contains(r.Boost, id):
		return contextShift
	case slices.Contains(r.Demote, id):
		return -contextShift
	}
	return 0
}

// Candidate is the best match found for one command.
type Candidate struct {
	// Command is the matched command.
	Command command.ID

	// Phrase is the variant that produced Score.
	Phrase string

	// Score is the ladder score of Phrase against the utterance.
	Score float64

	// MaxPossible is weight+20, the score of an exact match.
	MaxPossible float64

	// Strategy is the ladder rule that produced Score.
	Strategy Strategy

	// Weight is the command's base weight.
	Weight int

	// Index is the command's position in the table.
	Index int

	// Partial is set when a containment match found the phrase only inside
	// a longer word, such as "stop" in "stopwatch".
	Partial bool
}

// Confidence returns Score as a rounded percentage of MaxPossible, capped
// at 100.
func (c Candidate) Confidence() int {
	if c.MaxPossible <= 0 {
		return 0
	}
	return min(int(math.Round(c.Score/c.MaxPossible*100)), 100)
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithStrategies selects the enabled strategies. [Core] strategies are
// always enabled regardless of s. Default: [All].
func WithStrategies(s Set) Option {
	return func(e *Engine) {
		e.strategies = s | Core
	}
}

// WithFuzzyThreshold sets the minimum Levenshtein ratio (0-100) accepted by
// the fuzzy rule. Default: 85. Values outside (0, 100] are ignored.
func WithFuzzyThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 && threshold <= 100 {
			e.fuzzyThreshold = threshold
		}
	}
}

// WithContextRules replaces the context rules. Default:
// [DefaultContextRules]. Pass none to disable context shifts.
func WithContextRules(rules ...ContextRule) Option {
	return func(e *Engine) {
		e.contextRules = rules
	}
}

// phrase is a variant with everything the ladder needs precomputed.
type phrase struct {
	text      string
	words     []string
	soundex   string
	metaphone string
}

type entry struct {
	id      command.ID
	weight  int
	index   int
	phrases []phrase
}

// Engine scores utterances against a fixed set of expanded phrases. It is
// read-only after construction and safe for concurrent use.
type Engine struct {
	entries        []entry
	strategies     Set
	fuzzyThreshold float64
	contextRules   []ContextRule
}

// New builds an [Engine] for tbl. expanded maps each command to its variant
// set (see variants.Generator.ExpandAll); commands missing from expanded fall
// back to their canonical phrases.
func New(tbl *command.Table, expanded map[command.ID][]string, opts ...Option) *Engine {
	e := &Engine{
		strategies:     All,
		fuzzyThreshold: defaultFuzzyThreshold,
		contextRules:   DefaultContextRules(),
	}
	for _, o := range opts {
		o(e)
	}

	for i, d := range tbl.Definitions() {
		texts := expanded[d.ID]
		if len(texts) == 0 {
			texts = d.Phrases
		}
		en := entry{id: d.ID, weight: d.Weight, index: i}
		for _, t := range texts {
			t = normalize(t)
			if t == "" {
				continue
			}
			soundex, metaphone := phoneticCodes(t)
			en.phrases = append(en.phrases, phrase{
				text:      t,
				words:     uniqueWords(t),
				soundex:   soundex,
				metaphone: metaphone,
			})
		}
		e.entries = append(e.entries, en)
	}
	return e
}

// Strategies returns the enabled strategy set.
func (e *Engine) Strategies() Set { return e.strategies }

// Score returns the best candidate for utterance. ok is false when no
// command produced a positive score.
func (e *Engine) Score(utterance string) (best Candidate, ok bool) {
	ranked := e.Rank(utterance)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Rank returns one candidate per command that scored above zero, best
// first.
func (e *Engine) Rank(utterance string) []Candidate {
	utterance = normalize(utterance)
	if utterance == "" {
		return nil
	}
	in := input{
		text:  utterance,
		words: wordSet(utterance),
	}
	if e.strategies.Has(StrategyPhonetic) {
		in.soundex, in.metaphone = phoneticCodes(utterance)
	}

	var active []ContextRule
	for _, r := range e.contextRules {
		if r.applies(in.words) {
			active = append(active, r)
		}
	}

	var out []Candidate
	for _, en := range e.entries {
		var best Candidate
		for _, p := range en.phrases {
			score, strategy, partial := e.scorePhrase(in, p, en.weight)
			// On a tie prefer a whole-word match over a partial one.
			if score > best.Score || (score > 0 && score == best.Score && best.Partial && !partial) {
				best = Candidate{
					Command:     en.id,
					Phrase:      p.text,
					Score:       score,
					MaxPossible: float64(en.weight + exactBonus),
					Strategy:    strategy,
					Weight:      en.weight,
					Index:       en.index,
					Partial:     partial,
				}
			}
		}
		if best.Score <= 0 {
			continue
		}
		for _, r := range active {
			best.Score += r.shift(en.id)
		}
		if best.Score > 0 {
			out = append(out, best)
		}
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

type input struct {
	text      string
	words     map[string]struct{}
	soundex   string
	metaphone string
}

// scorePhrase applies the ladder to one phrase. It returns 0 when no rule
// applies. partial is only ever set for containment.
func (e *Engine) scorePhrase(in input, p phrase, weight int) (score float64, strategy Strategy, partial bool) {
	w := float64(weight)

	if in.text == p.text {
		return w + exactBonus, StrategyExact, false
	}
	if strings.Contains(in.text, p.text) {
		return w + containmentBonus, StrategyContainment, !wholeWords(in.text, p.text)
	}
	if strings.Contains(p.text, in.text) {
		return w + containmentBonus, StrategyContainment, !wholeWords(p.text, in.text)
	}

	shared, long := 0, false
	for _, pw := range p.words {
		if _, ok := in.words[pw]; ok {
			shared++
			if utf8.RuneCountInString(pw) >= minLooseWordLength {
				long = true
			}
		}
	}
	if shared >= minOverlapWords {
		return w + float64(overlapPerWord*shared), StrategyOverlap, false
	}
	if long && e.strategies.Has(StrategyLooseOverlap) && w-loosePenalty > 0 {
		return w - loosePenalty, StrategyLooseOverlap, false
	}

	if e.strategies.Has(StrategyFuzzy) {
		if ratio := Ratio(in.text, p.text); ratio >= e.fuzzyThreshold {
			return w + ratio/20, StrategyFuzzy, false
		}
	}

	if e.strategies.Has(StrategyPhonetic) {
		if codeMatch(in.soundex, p.soundex) || codeMatch(in.metaphone, p.metaphone) {
			return w + phoneticBonus, StrategyPhonetic, false
		}
	}
	return 0, 0, false
}

// wholeWords reports whether needle occurs in s on word boundaries at least
// once. Both strings are normalised, so words are separated by one space.
func wholeWords(s, needle string) bool {
	for off := 0; off <= len(s)-len(needle); {
		i := strings.Index(s[off:], needle)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(needle)
		if (start == 0 || s[start-1] == ' ') && (end == len(s) || s[end] == ' ') {
			return true
		}
		off = start + 1
	}
	return false
}

// Ratio returns the Levenshtein similarity of a and b as a whole percentage
// in [0, 100]. Two empty strings are identical.
func Ratio(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 100
	}
	d := matchr.Levenshtein(a, b)
	return math.Round(100 * (1 - float64(d)/float64(n)))
}

func codeMatch(a, b string) bool {
	return len(a) >= minPhoneticCode && a == b
}

// phoneticCodes returns the Soundex code (zero padding removed) and the
// primary Double Metaphone code of s with spaces stripped.
func phoneticCodes(s string) (soundex, metaphone string) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "", ""
	}
	soundex = strings.TrimRight(matchr.Soundex(s), "0")
	metaphone, _ = matchr.DoubleMetaphone(s)
	return soundex, metaphone
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func uniqueWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}
