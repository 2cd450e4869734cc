package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/slidesense/internal/app"
	"github.com/MrWong99/slidesense/internal/config"
	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/internal/observe"
	"github.com/MrWong99/slidesense/pkg/command"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

// testConfig returns the default config with history written to a temp file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.History.File = filepath.Join(t.TempDir(), "speech_history.jsonl")
	return cfg
}

// helpOnlyConfig keeps only the help command with a single two-word phrase,
// so "presentasi sekarang" lands in its confirmation band via loose overlap.
func helpOnlyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	for _, id := range command.IDs() {
		if id == command.Help {
			cfg.Commands = append(cfg.Commands, config.CommandConfig{ID: id, Phrases: []string{"bantuan presentasi"}})
			continue
		}
		cfg.Commands = append(cfg.Commands, config.CommandConfig{ID: id, Disabled: true})
	}
	return cfg
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counterTotal sums every data point of the int64 counter name.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestNew_BuildsFromConfig(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	if a.Table().Len() != len(command.IDs()) {
		t.Errorf("Table().Len() = %d, want %d", a.Table().Len(), len(command.IDs()))
	}
	checks := a.Checkers()
	if len(checks) != 1 || checks[0].Name != "history_file" {
		t.Fatalf("Checkers = %+v, want history_file", checks)
	}
	if err := checks[0].Check(context.Background()); err != nil {
		t.Errorf("history_file check: %v", err)
	}
}

func TestNew_InvalidCommandTable(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Commands = []config.CommandConfig{{ID: "reboot"}}
	if _, err := app.New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown command override")
	}
}

func TestHandle_RecordsHistoryAndMetrics(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	clock := newClock()
	m, reader := newTestMetrics(t)

	var got []detect.Kind
	a, err := app.New(context.Background(), cfg,
		app.WithMetrics(m),
		app.WithClock(clock.Now),
		app.WithResultHandler(func(_ context.Context, r detect.Result) { got = append(got, r.Kind) }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first := a.Handle(ctx, "next slide")
	if first.Kind != detect.KindMatched || first.Command != command.Next {
		t.Fatalf("first = %+v, want matched next", first)
	}
	if second := a.Handle(ctx, "next slide"); second.Kind != detect.KindSuppressedByCooldown {
		t.Errorf("second kind = %s, want suppressed_by_cooldown", second.Kind)
	}
	clock.Advance(3 * time.Second)
	if third := a.Handle(ctx, "previous slide"); third.Kind != detect.KindMatched || third.Command != command.Previous {
		t.Errorf("third = %+v, want matched previous", third)
	}

	if len(got) != 3 {
		t.Errorf("result handler saw %d results, want 3", len(got))
	}
	if n := counterTotal(t, reader, "slidesense.detections"); n != 3 {
		t.Errorf("detections counter = %d, want 3", n)
	}
	if n := counterTotal(t, reader, "slidesense.history.writes"); n != 3 {
		t.Errorf("history writes counter = %d, want 3", n)
	}

	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	records, err := history.NewFileStore(cfg.History.File).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 3 || records[0].Kind != "matched" || records[1].Kind != "suppressed_by_cooldown" {
		t.Errorf("records = %+v", records)
	}
	if !records[2].Time.Equal(clock.Now()) {
		t.Errorf("record time = %v, want injected clock %v", records[2].Time, clock.Now())
	}

	snaps := a.Snapshots()
	for _, s := range snaps {
		if s.Command == command.Next && s.Successes != 1 {
			t.Errorf("next successes = %d, want 1", s.Successes)
		}
	}
}

func TestRun_ReturnsWhenInputCloses(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	results := make(chan detect.Result, 8)
	a, err := app.New(context.Background(), testConfig(t),
		app.WithMetrics(m),
		app.WithResultHandler(func(_ context.Context, r detect.Result) { results <- r }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	lines := make(chan string, 2)
	lines <- "stop"
	lines <- "zzz qqq"
	close(lines)

	if err := a.Run(context.Background(), lines); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(results)

	var kinds []detect.Kind
	for r := range results {
		kinds = append(kinds, r.Kind)
	}
	if len(kinds) != 2 || kinds[0] != detect.KindMatched || kinds[1] != detect.KindSuppressedByCooldown {
		t.Errorf("kinds = %v, want [matched suppressed_by_cooldown]", kinds)
	}
}

func TestRun_ExpiresPendingConfirmation(t *testing.T) {
	t.Parallel()

	clock := newClock()
	m, reader := newTestMetrics(t)
	results := make(chan detect.Result, 8)
	a, err := app.New(context.Background(), helpOnlyConfig(t),
		app.WithMetrics(m),
		app.WithClock(clock.Now),
		app.WithExpireInterval(time.Millisecond),
		app.WithResultHandler(func(_ context.Context, r detect.Result) { results <- r }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines := make(chan string)
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, lines) }()

	lines <- "presentasi sekarang"
	pending := <-results
	if pending.Kind != detect.KindPendingConfirmation || pending.Command != command.Help {
		t.Fatalf("first result = %+v, want pending_confirmation for help", pending)
	}

	clock.Advance(6 * time.Second)
	select {
	case r := <-results:
		if r.Kind != detect.KindCancelled || r.Reason != detect.ReasonTimeout {
			t.Errorf("expired result = %+v, want cancelled/timeout", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending confirmation never expired")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if n := counterTotal(t, reader, "slidesense.pending_confirmations"); n != 0 {
		t.Errorf("pending gauge = %d, want 0 after expiry", n)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	}
}
