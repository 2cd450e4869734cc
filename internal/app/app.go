// Package app wires the slidesense subsystems into a running detector.
//
// The App struct owns the full lifecycle: New builds the detection pipeline
// and opens the history sinks, Run feeds utterances through the session
// until the input ends or ctx is cancelled, and Shutdown closes everything
// in order.
//
// For testing, inject doubles via functional options (WithRecorder,
// WithClock, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/slidesense/internal/adaptive"
	"github.com/MrWong99/slidesense/internal/config"
	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/health"
	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/internal/observe"
	"github.com/MrWong99/slidesense/internal/resilience"
	"github.com/MrWong99/slidesense/pkg/command"
)

const defaultExpireInterval = 250 * time.Millisecond

// Config reload outcomes recorded in metrics.
const (
	reloadApplied = "applied"
	reloadIgnored = "ignored"
	reloadFailed  = "failed"
)

// App owns the detection pipeline and its collaborators.
type App struct {
	cfg      *config.Config
	pipeline *Pipeline

	metrics        *observe.Metrics
	recorder       *history.Recorder
	checkers       []health.Checker
	onResult       func(context.Context, detect.Result)
	now            func() time.Time
	level          *slog.LevelVar
	source         string
	expireInterval time.Duration

	reloads chan *config.Config

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithRecorder injects a history recorder instead of opening the sinks named
// in the config.
func WithRecorder(r *history.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithResultHandler registers fn to be called with every result, including
// timeouts raised by the expiry ticker.
func WithResultHandler(fn func(context.Context, detect.Result)) Option {
	return func(a *App) { a.onResult = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithLevelVar lets config reloads change the log level of the handler
// built around v.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithSource labels detection spans with the utterance source. Default:
// "stdin".
func WithSource(s string) Option {
	return func(a *App) { a.source = s }
}

// WithExpireInterval sets how often Run checks for timed-out
// confirmations. Default: 250ms.
func WithExpireInterval(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.expireInterval = d
		}
	}
}

// New builds the detection pipeline from cfg and opens the history sinks.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:            cfg,
		now:            time.Now,
		source:         "stdin",
		expireInterval: defaultExpireInterval,
		reloads:        make(chan *config.Config, 1),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	p, err := BuildPipeline(cfg)
	if err != nil {
		return nil, err
	}
	a.pipeline = p

	if a.recorder == nil {
		if err := a.initHistory(ctx); err != nil {
			return nil, fmt.Errorf("app: init history: %w", err)
		}
	}
	a.closers = append(a.closers, a.recorder.Close)
	return a, nil
}

// initHistory opens the configured sinks. PostgreSQL is preferred when
// configured; if it cannot be reached at startup the file sink is used
// alone.
func (a *App) initHistory(ctx context.Context) error {
	a.recorder = history.NewRecorder(resilience.BreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 30 * time.Second,
	})

	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := history.NewPostgresStore(pctx, dsn)
		cancel()
		if err != nil {
			if a.cfg.History.File == "" {
				return err
			}
			slog.Warn("postgres history unavailable, using file only", "err", err)
		} else {
			a.recorder.Add(history.SinkPostgres, pg)
			a.checkers = append(a.checkers, health.Checker{Name: "history_postgres", Check: pg.Check})
		}
	}
	if path := a.cfg.History.File; path != "" {
		fs := history.NewFileStore(path)
		a.recorder.Add(history.SinkFile, fs)
		a.checkers = append(a.checkers, health.Checker{Name: "history_file", Check: fs.Check})
	}
	return nil
}

// Checkers returns readiness checks for the history sinks.
func (a *App) Checkers() []health.Checker { return a.checkers }

// Table returns the current command table.
func (a *App) Table() *command.Table { return a.pipeline.Table }

// Snapshots returns the adaptive state of every command. Call it only when
// Run is not executing.
func (a *App) Snapshots() []adaptive.State { return a.pipeline.Controller.Snapshots() }

// Reload queues cfg to be applied by the Run loop. It is safe to call from
// any goroutine; only the newest queued config is kept. Its signature
// matches the [config.Watcher] callback.
func (a *App) Reload(_, cfg *config.Config) {
	for {
		select {
		case a.reloads <- cfg:
			return
		default:
		}
		select {
		case <-a.reloads:
		default:
		}
	}
}

// Run classifies every line received on lines until lines is closed or ctx
// is cancelled. It also expires pending confirmations and applies queued
// config reloads. Run returns nil when lines is closed.
func (a *App) Run(ctx context.Context, lines <-chan string) error {
	ticker := time.NewTicker(a.expireInterval)
	defer ticker.Stop()

	slog.Info("detector running", "commands", a.pipeline.Table.Len(), "source", a.source)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			a.Handle(ctx, line)
		case <-ticker.C:
			a.expire(ctx)
		case cfg := <-a.reloads:
			a.applyReload(ctx, cfg)
		}
	}
}

// Handle classifies one utterance, records it and passes the result to the
// result handler. It must not be called concurrently with Run.
func (a *App) Handle(ctx context.Context, utterance string) detect.Result {
	ctx, span := observe.StartDetectionSpan(ctx, a.source, len(utterance))
	defer span.End()

	wasPending := a.pipeline.Session.State() == detect.StatePendingConfirmation
	start := time.Now()
	res := a.pipeline.Session.Detect(a.now(), utterance)
	elapsed := time.Since(start)

	observe.SetDetectionOutcome(span, res.Kind.String(), string(res.Command), res.Confidence)
	a.metrics.RecordDetection(ctx, res.Kind.String(), string(res.Command), scored(res.Kind), res.Confidence, elapsed)
	a.trackPending(ctx, wasPending)
	a.emit(ctx, res)
	return res
}

func (a *App) expire(ctx context.Context) {
	res, ok := a.pipeline.Session.Expire(a.now())
	if !ok {
		return
	}
	a.metrics.RecordDetection(ctx, res.Kind.String(), string(res.Command), false, 0, 0)
	a.trackPending(ctx, true)
	a.emit(ctx, res)
}

// trackPending keeps the pending-confirmation gauge in step with the
// session state.
func (a *App) trackPending(ctx context.Context, wasPending bool) {
	isPending := a.pipeline.Session.State() == detect.StatePendingConfirmation
	switch {
	case isPending && !wasPending:
		a.metrics.PendingConfirmations.Add(ctx, 1)
	case !isPending && wasPending:
		a.metrics.PendingConfirmations.Add(ctx, -1)
	}
}

func (a *App) emit(ctx context.Context, res detect.Result) {
	log := observe.Logger(ctx)
	log.Debug("utterance classified",
		"kind", res.Kind.String(),
		"command", res.Command,
		"score", res.Score,
		"threshold", res.Threshold,
		"confidence", res.Confidence,
	)

	if len(a.recorder.Sinks()) > 0 {
		sink, err := a.recorder.Append(ctx, history.FromResult(a.now(), res))
		if err != nil {
			log.Warn("history write failed", "err", err)
			a.metrics.RecordHistoryWrite(ctx, "none", "error")
		} else {
			a.metrics.RecordHistoryWrite(ctx, sink, "ok")
		}
	}

	if a.onResult != nil {
		a.onResult(ctx, res)
	}
}

// applyReload rebuilds the pipeline when detection settings changed and
// swaps the log level in place.
func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	diff := config.Diff(a.cfg, cfg)

	if diff.LogLevelChanged && a.level != nil {
		a.level.Set(diff.NewLogLevel.Slog())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.RequiresRestart() {
		slog.Warn("config change needs a restart to take effect",
			"listen_addr_changed", diff.ListenAddrChanged,
			"history_changed", diff.HistoryChanged,
		)
	}

	status := reloadIgnored
	if diff.RebuildSession() {
		p, err := BuildPipeline(cfg)
		if err != nil {
			slog.Error("config reload failed, keeping current session", "err", err)
			a.metrics.RecordConfigReload(ctx, reloadFailed)
			return
		}
		if a.pipeline.Session.State() == detect.StatePendingConfirmation {
			a.metrics.PendingConfirmations.Add(ctx, -1)
		}
		a.pipeline = p
		slog.Info("detection session rebuilt, adaptive state reset",
			"detection_changed", diff.DetectionChanged,
			"adaptive_changed", diff.AdaptiveChanged,
			"commands_changed", diff.CommandsChanged,
		)
		status = reloadApplied
	} else if diff.LogLevelChanged {
		status = reloadApplied
	}
	a.cfg = cfg
	a.metrics.RecordConfigReload(ctx, status)
}

// Shutdown runs the closers in order. It is idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// scored reports whether a result of kind k carries a meaningful score.
func scored(k detect.Kind) bool {
	switch k {
	case detect.KindMatched, detect.KindPendingConfirmation, detect.KindUnknown:
		return true
	}
	return false
}
