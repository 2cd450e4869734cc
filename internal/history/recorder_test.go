package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/internal/resilience"
)

// brokenStore fails every call.
type brokenStore struct {
	appends int
	closed  bool
}

var errBroken = errors.New("connection refused")

func (b *brokenStore) Append(context.Context, history.Record) error {
	b.appends++
	return errBroken
}
func (b *brokenStore) Load(context.Context) ([]history.Record, error) { return nil, errBroken }
func (b *brokenStore) Check(context.Context) error                    { return errBroken }
func (b *brokenStore) Close() error                                   { b.closed = true; return nil }

func TestRecorder_FallsBackToFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	broken := &brokenStore{}
	file := history.NewFileStore(filepath.Join(t.TempDir(), "speech_history.jsonl"))

	r := history.NewRecorder(resilience.BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	r.Add(history.SinkPostgres, broken)
	r.Add(history.SinkFile, file)

	for i := range 4 {
		sink, err := r.Append(ctx, history.Record{Utterance: "next slide", Kind: "matched"})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if sink != history.SinkFile {
			t.Errorf("Append %d sink = %q, want file", i, sink)
		}
	}
	if broken.appends != 2 {
		t.Errorf("broken store called %d times, want 2 before its breaker opened", broken.appends)
	}

	got, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Load returned %d records, want 4", len(got))
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !broken.closed {
		t.Error("Close did not close every store")
	}
	if s := r.Sinks(); len(s) != 2 || s[0] != history.SinkPostgres {
		t.Errorf("Sinks = %q", s)
	}
}

func TestRecorder_AllSinksFail(t *testing.T) {
	t.Parallel()

	r := history.NewRecorder(resilience.BreakerConfig{})
	r.Add(history.SinkPostgres, &brokenStore{})

	_, err := r.Append(context.Background(), history.Record{Kind: "matched"})
	if !errors.Is(err, resilience.ErrAllFailed) || !errors.Is(err, errBroken) {
		t.Errorf("Append err = %v, want ErrAllFailed wrapping the store error", err)
	}
}
