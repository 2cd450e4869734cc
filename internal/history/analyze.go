package history

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/scoring"
	"github.com/MrWong99/slidesense/pkg/command"
)

// SuggestionThreshold is the confidence an unrecognised utterance needs
// before it is proposed as a new phrase for its nearest command.
const SuggestionThreshold = 0.5

// Suggestion proposes an utterance as an additional phrase.
type Suggestion struct {
	Utterance string

	// Confidence is the similarity to the nearest command in [0, 1].
	Confidence float64

	// Count is how often the utterance appeared.
	Count int
}

// Group collects the suggestions for one command.
type Group struct {
	Command     command.ID
	Suggestions []Suggestion
}

// Report summarises a history.
type Report struct {
	Total        int
	Recognized   int
	Unrecognized int

	// SuccessRate is Recognized/Total, or 0 for an empty history.
	SuccessRate float64

	// Groups holds commands with at least one suggestion, largest group
	// first.
	Groups []Group

	// Unplaced lists unrecognised utterances no command came close to.
	Unplaced []string
}

// Suggestions returns the total number of suggestions across groups.
func (r Report) Suggestions() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Suggestions)
	}
	return n
}

// Analyze counts recognised and unrecognised records and groups the
// utterances the engine could not place under the most similar command in
// tbl. Similarity is the best of the Levenshtein ratio against each phrase
// and a token-set ratio against all of the command's phrases together.
func Analyze(records []Record, tbl *command.Table) Report {
	var rep Report
	rep.Total = len(records)

	counts := map[string]int{}
	var order []string
	for _, rec := range records {
		switch {
		case rec.Recognized():
			rep.Recognized++
		case rec.Unrecognized():
			rep.Unrecognized++
			// Cancelled records carry the yes/no reply, not a command attempt.
			if rec.Kind == detect.KindCancelled.String() {
				continue
			}
			u := strings.ToLower(strings.TrimSpace(rec.Utterance))
			if u == "" {
				continue
			}
			if counts[u] == 0 {
				order = append(order, u)
			}
			counts[u]++
		}
	}
	if rep.Total > 0 {
		rep.SuccessRate = float64(rep.Recognized) / float64(rep.Total)
	}

	groups := map[command.ID]*Group{}
	for _, u := range order {
		id, conf := nearest(u, tbl)
		if id == "" || conf <= SuggestionThreshold {
			rep.Unplaced = append(rep.Unplaced, u)
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &Group{Command: id}
			groups[id] = g
		}
		g.Suggestions = append(g.Suggestions, Suggestion{Utterance: u, Confidence: conf, Count: counts[u]})
	}

	for _, g := range groups {
		slices.SortStableFunc(g.Suggestions, func(a, b Suggestion) int {
			return cmp.Or(
				cmp.Compare(b.Confidence, a.Confidence),
				cmp.Compare(b.Count, a.Count),
			)
		})
		rep.Groups = append(rep.Groups, *g)
	}
	slices.SortFunc(rep.Groups, func(a, b Group) int {
		return cmp.Or(
			cmp.Compare(len(b.Suggestions), len(a.Suggestions)),
			cmp.Compare(tbl.Index(a.Command), tbl.Index(b.Command)),
		)
	})
	return rep
}

// nearest returns the command most similar to u and the similarity in
// [0, 1]. Earlier commands win ties.
func nearest(u string, tbl *command.Table) (command.ID, float64) {
	var (
		best   float64
		bestID command.ID
	)
	for _, def := range tbl.Definitions() {
		for _, p := range def.Phrases {
			if r := scoring.Ratio(u, p); r > best {
				best, bestID = r, def.ID
			}
		}
		if r := tokenSetRatio(u, strings.Join(def.Phrases, " ")); r > best {
			best, bestID = r, def.ID
		}
	}
	return bestID, best / 100
}

// tokenSetRatio compares the sorted word sets of a and b so that word order
// and extra words on one side matter less than shared words.
func tokenSetRatio(a, b string) float64 {
	wa, wb := sortedWords(a), sortedWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	var inter, onlyA, onlyB []string
	for _, w := range wa {
		if _, ok := slices.BinarySearch(wb, w); ok {
			inter = append(inter, w)
		} else {
			onlyA = append(onlyA, w)
		}
	}
	for _, w := range wb {
		if _, ok := slices.BinarySearch(wa, w); !ok {
			onlyB = append(onlyB, w)
		}
	}
	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))
	return max(scoring.Ratio(t0, t1), scoring.Ratio(t0, t2), scoring.Ratio(t1, t2))
}

func sortedWords(s string) []string {
	words := strings.Fields(s)
	slices.Sort(words)
	return slices.Compact(words)
}
