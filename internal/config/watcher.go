package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file and reports edits that change at least one
// setting. Edits that fail to parse or validate are logged and remembered in
// [Watcher.LastError]; the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
	lastErr error
}

// fileStamp is the cheap part of change detection. The file is only parsed
// when its stamp moves.
type fileStamp struct {
	mtime time.Time
	size  int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{mtime: info.ModTime(), size: info.Size()}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Default: 5s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path. onChange, which may be nil, is called
// from [Watcher.Run] after each effective edit.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.current = cfg
	w.stamp = stampOf(info)
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// LastError returns why the latest edit was rejected, or nil once a valid
// edit has been accepted since.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Check reports [Watcher.LastError] and has the signature of a health
// check.
func (w *Watcher) Check(context.Context) error {
	if err := w.LastError(); err != nil {
		return fmt.Errorf("config: latest edit rejected: %w", err)
	}
	return nil
}

// Run polls until ctx is cancelled and always returns nil, so it can be
// handed to an errgroup directly.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}
	stamp := stampOf(info)

	w.mu.Lock()
	unchanged := stamp == w.stamp
	w.stamp = stamp
	old := w.current
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.lastErr = nil
	w.mu.Unlock()

	d := Diff(old, cfg)
	if d.Empty() {
		slog.Debug("config watcher: file changed but no setting did", "path", w.path)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"rebuild_session", d.RebuildSession(),
		"restart_required", d.RequiresRestart(),
	)

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}
