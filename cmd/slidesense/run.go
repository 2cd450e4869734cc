package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/slidesense/internal/app"
	"github.com/MrWong99/slidesense/internal/config"
	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/health"
	"github.com/MrWong99/slidesense/internal/observe"
)

const shutdownTimeout = 5 * time.Second

func runCmd(c *cli) *cobra.Command {
	var (
		listen string
		source string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect commands in utterances read line by line from stdin",
		Long: `run reads one transcribed utterance per line from stdin and prints the
detection result for each. When server.listen_addr is set, /metrics,
/healthz and /readyz are served on it. Edits to the config file are picked
up while running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, fromFile, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.ListenAddr = listen
			}
			return c.runDetector(cmd.Context(), cfg, fromFile, source)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override server.listen_addr; empty disables HTTP")
	cmd.Flags().StringVar(&source, "source", "stdin", "label for the utterance source in traces")
	return cmd
}

func (c *cli) runDetector(ctx context.Context, cfg *config.Config, fromFile bool, source string) error {
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "slidesense",
		ServiceVersion: version,
		Registerer:     c.registerer,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var a *app.App
	a, err = app.New(ctx, cfg,
		app.WithMetrics(metrics),
		app.WithLevelVar(&c.level),
		app.WithSource(source),
		app.WithResultHandler(func(_ context.Context, r detect.Result) {
			printResult(c.out, a.Table(), r)
		}),
	)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(sctx); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	checkers := a.Checkers()
	var watcher *config.Watcher
	if fromFile {
		watcher, err = config.NewWatcher(c.configPath, a.Reload)
		if err != nil {
			return err
		}
		checkers = append(checkers, health.Checker{Name: "config", Check: watcher.Check})
	}
	probes := health.New(checkers...)
	printStartupSummary(c.out, cfg, a.Table(), fromFile, c.configPath)

	runCtx, stopAll := context.WithCancel(ctx)
	defer stopAll()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := cfg.Server.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
		probes.Register(mux)
		handler := observe.Middleware(metrics,
			observe.WithRoutes("/metrics", "/healthz", "/readyz"),
			observe.WithUntracedPaths("/metrics"),
		)(mux)
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("serving metrics and health", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	lines := readLines(gctx, c.in)
	probes.SetReady(true)
	g.Go(func() error {
		// End of input stops the HTTP server and the watcher too.
		defer stopAll()
		err := a.Run(gctx, lines)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	probes.SetReady(false)
	printShutdownSummary(c.out, a.Table(), a.Snapshots())
	return err
}

// readLines sends each line of r on the returned channel until r is
// exhausted or ctx is done. The reader goroutine is not part of the
// errgroup because a blocking stdin read cannot be interrupted.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("input read error", "err", err)
		}
	}()
	return ch
}
