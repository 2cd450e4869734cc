package history_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/internal/scoring"
	"github.com/MrWong99/slidesense/pkg/command"
)

var t0 = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func TestFileStore_AppendAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs := history.NewFileStore(filepath.Join(t.TempDir(), "speech_history.jsonl"))

	want := []history.Record{
		{Time: t0, Utterance: "next slide", Kind: "matched", Command: command.Next, Score: 30, Confidence: 100, Threshold: 10, Strategy: "exact"},
		{Time: t0.Add(time.Second), Utterance: "zzz", Kind: "no_match"},
	}
	for _, rec := range want {
		if err := fs.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Time.Equal(want[i].Time) {
			t.Errorf("record %d time = %v, want %v", i, got[i].Time, want[i].Time)
		}
		got[i].Time = want[i].Time
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	fs := history.NewFileStore(filepath.Join(t.TempDir(), "missing.jsonl"))
	got, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load = %v, want empty", got)
	}
}

func TestFileStore_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "speech_history.jsonl")
	content := `{"utterance":"next slide","kind":"matched"}
not json at all

{"utterance":"stop","kind":"matched"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := history.NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Utterance != "next slide" || got[1].Utterance != "stop" {
		t.Errorf("Load = %+v", got)
	}
}

func TestFileStore_Check(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := history.NewFileStore(filepath.Join(dir, "ok.jsonl")).Check(context.Background()); err != nil {
		t.Errorf("Check on writable path: %v", err)
	}
	// A directory cannot be opened for appending.
	if err := history.NewFileStore(dir).Check(context.Background()); err == nil {
		t.Error("Check on a directory should fail")
	}
}

func TestReadRecords(t *testing.T) {
	t.Parallel()

	in := `{"utterance":"a","kind":"unknown","command":"help","confidence":40}` + "\n"
	got, err := history.ReadRecords(context.Background(), strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(got) != 1 || got[0].Command != command.Help || got[0].Confidence != 40 {
		t.Errorf("ReadRecords = %+v", got)
	}
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	local := time.Date(2026, 3, 2, 16, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	rec := history.FromResult(local, detect.Result{
		Kind:       detect.KindMatched,
		Command:    command.Stop,
		Score:      35,
		Confidence: 100,
		Threshold:  15,
		Phrase:     "stop",
		Strategy:   scoring.StrategyExact,
		Utterance:  "stop",
	})
	if rec.Time.Location() != time.UTC || !rec.Time.Equal(local) {
		t.Errorf("Time = %v, want %v in UTC", rec.Time, local)
	}
	if rec.Kind != "matched" || rec.Strategy != "exact" || rec.Command != command.Stop {
		t.Errorf("FromResult = %+v", rec)
	}
	if !rec.Recognized() || rec.Unrecognized() {
		t.Error("matched record should be recognized")
	}

	none := history.FromResult(local, detect.Result{Kind: detect.KindNoMatch, Utterance: "zzz"})
	if none.Strategy != "" {
		t.Errorf("Strategy = %q, want empty", none.Strategy)
	}
	if none.Recognized() || !none.Unrecognized() {
		t.Error("no_match record should be unrecognized")
	}
}
