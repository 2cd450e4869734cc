package variants

import (
	"slices"
	"strings"
)

// Position restricts where in a word a [Rule] may apply.
type Position int

const (
	// Anywhere replaces every occurrence inside the word.
	Anywhere Position = iota
	// WordStart replaces the pattern only as a word prefix.
	WordStart
	// WordEnd replaces the pattern only as a word suffix.
	WordEnd
)

// Rule is a single spelling substitution.
type Rule struct {
	From     string
	To       string
	Position Position
}

// apply rewrites every whitespace-separated token of phrase.
func (r Rule) apply(phrase string) string {
	words := strings.Split(phrase, " ")
	for i, w := range words {
		words[i] = r.applyWord(w)
	}
	return strings.Join(words, " ")
}

func (r Rule) applyWord(w string) string {
	if r.From == "" || len(w) <= len(r.From) && r.Position != Anywhere {
		// A positional rule must leave at least one letter of the word intact.
		return w
	}
	switch r.Position {
	case WordStart:
		if strings.HasPrefix(w, r.From) {
			return r.To + w[len(r.From):]
		}
	case WordEnd:
		if strings.HasSuffix(w, r.From) {
			return w[:len(w)-len(r.From)] + r.To
		}
	default:
		return strings.ReplaceAll(w, r.From, r.To)
	}
	return w
}

// Region selects a regional accent table.
type Region string

const (
	RegionNone      Region = "none"
	RegionJavanese  Region = "javanese"
	RegionSundanese Region = "sundanese"
	RegionMixed     Region = "mixed"
)

// IsValid reports whether r is a recognised region.
func (r Region) IsValid() bool {
	switch r {
	case RegionNone, RegionJavanese, RegionSundanese, RegionMixed:
		return true
	}
	return false
}

// PhonemeRules models recogniser confusions between English spelling and
// Indonesian pronunciation.
var PhonemeRules = []Rule{
	{From: "x", To: "ks", Position: Anywhere},
	{From: "ck", To: "k", Position: Anywhere},
	{From: "ph", To: "f", Position: Anywhere},
	{From: "th", To: "t", Position: Anywhere},
	{From: "qu", To: "kw", Position: Anywhere},
	{From: "cl", To: "kl", Position: WordStart},
	{From: "ca", To: "ka", Position: WordStart},
	{From: "co", To: "ko", Position: WordStart},
	{From: "ide", To: "aid", Position: WordEnd},
	{From: "ow", To: "o", Position: WordEnd},
	{From: "tion", To: "syen", Position: WordEnd},
	{From: "ay", To: "ei", Position: WordEnd},
	{From: "e", To: "", Position: WordEnd},
}

type regionalRule struct {
	Rule
	regions []Region
}

// regionalRules models accent drift: final devoicing and vowel raising for
// Javanese speakers, labial shifts for Sundanese speakers.
var regionalRules = []regionalRule{
	{Rule{From: "d", To: "t", Position: WordEnd}, []Region{RegionJavanese}},
	{Rule{From: "b", To: "p", Position: WordEnd}, []Region{RegionJavanese}},
	{Rule{From: "g", To: "k", Position: WordEnd}, []Region{RegionJavanese}},
	{Rule{From: "e", To: "i", Position: WordStart}, []Region{RegionJavanese}},
	{Rule{From: "v", To: "f", Position: Anywhere}, []Region{RegionJavanese}},
	{Rule{From: "z", To: "s", Position: Anywhere}, []Region{RegionJavanese}},
	{Rule{From: "f", To: "p", Position: Anywhere}, []Region{RegionSundanese}},
	{Rule{From: "v", To: "p", Position: Anywhere}, []Region{RegionSundanese}},
	{Rule{From: "z", To: "j", Position: Anywhere}, []Region{RegionSundanese}},
}

// RegionalRules returns the accent rules that apply to region. RegionMixed
// returns the union of every regional table; RegionNone returns nil.
func RegionalRules(region Region) []Rule {
	if region == RegionNone {
		return nil
	}
	var out []Rule
	for _, rr := range regionalRules {
		if region == RegionMixed || slices.Contains(rr.regions, region) {
			out = append(out, rr.Rule)
		}
	}
	return out
}
