package history_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/pkg/command"
)

func analyzeTable(t *testing.T) *command.Table {
	t.Helper()
	tbl, err := command.NewTable(
		command.Definition{ID: command.Next, Phrases: []string{"next slide", "lanjut"}, Weight: 10},
		command.Definition{ID: command.Previous, Phrases: []string{"previous slide", "kembali"}, Weight: 10},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	records := []history.Record{
		{Utterance: "next slide", Kind: "matched", Command: command.Next},
		{Utterance: "kembali", Kind: "matched", Command: command.Previous},
		{Utterance: "lanjut dong", Kind: "unknown", Command: command.Next},
		{Utterance: "Lanjut dong", Kind: "unknown", Command: command.Next},
		{Utterance: "next slaid", Kind: "no_match"},
		{Utterance: "kembaliin", Kind: "no_match"},
		{Utterance: "zzz", Kind: "no_match"},
		{Utterance: "no", Kind: "cancelled", Command: command.Stop, Reason: "declined"},
		{Utterance: "", Kind: "rejected", Reason: "too_short"},
	}

	rep := history.Analyze(records, analyzeTable(t))

	if rep.Total != 9 || rep.Recognized != 2 || rep.Unrecognized != 6 {
		t.Errorf("counts = %d/%d/%d, want 9/2/6", rep.Total, rep.Recognized, rep.Unrecognized)
	}
	if rep.SuccessRate != 2.0/9.0 {
		t.Errorf("SuccessRate = %v, want %v", rep.SuccessRate, 2.0/9.0)
	}
	if !slices.Equal(rep.Unplaced, []string{"zzz"}) {
		t.Errorf("Unplaced = %q, want [zzz]", rep.Unplaced)
	}
	if rep.Suggestions() != 3 {
		t.Errorf("Suggestions() = %d, want 3", rep.Suggestions())
	}
	if len(rep.Groups) != 2 {
		t.Fatalf("Groups = %+v, want 2 groups", rep.Groups)
	}

	next := rep.Groups[0]
	if next.Command != command.Next {
		t.Fatalf("largest group = %s, want next", next.Command)
	}
	want := []history.Suggestion{
		{Utterance: "next slaid", Confidence: 0.8, Count: 1},
		{Utterance: "lanjut dong", Confidence: 0.55, Count: 2},
	}
	if !slices.Equal(next.Suggestions, want) {
		t.Errorf("next suggestions = %+v, want %+v", next.Suggestions, want)
	}

	prev := rep.Groups[1]
	if prev.Command != command.Previous || len(prev.Suggestions) != 1 || prev.Suggestions[0].Utterance != "kembaliin" {
		t.Errorf("previous group = %+v", prev)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()

	rep := history.Analyze(nil, analyzeTable(t))
	if rep.Total != 0 || rep.SuccessRate != 0 || len(rep.Groups) != 0 || len(rep.Unplaced) != 0 {
		t.Errorf("Analyze(nil) = %+v", rep)
	}
}

func TestAnalyze_TokenSetMatchesSharedWord(t *testing.T) {
	t.Parallel()

	rep := history.Analyze([]history.Record{{Utterance: "slide", Kind: "unknown"}}, analyzeTable(t))
	if len(rep.Groups) != 1 || rep.Groups[0].Command != command.Next {
		t.Fatalf("Groups = %+v, want slide under next (first command wins ties)", rep.Groups)
	}
	if got := rep.Groups[0].Suggestions[0].Confidence; got != 1 {
		t.Errorf("Confidence = %v, want 1", got)
	}
}
