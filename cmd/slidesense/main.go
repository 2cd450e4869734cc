// Command slidesense classifies transcribed voice utterances into
// presentation-control commands.
//
// "slidesense run" reads one utterance per line from stdin (the output of a
// speech recogniser) and prints the detection result for each. The other
// subcommands are diagnostics: score ranks every command for an utterance,
// variants prints phrase variant sets and collisions, analyze summarises the
// detection history and commands lists the command table.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MrWong99/slidesense/internal/config"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(c).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "slidesense: %v\n", err)
		return 1
	}
	return 0
}

// cli holds the state shared by every subcommand.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	level      slog.LevelVar

	// registerer and gatherer back the /metrics endpoint. Tests swap in a
	// private registry.
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{
		in:         in,
		out:        out,
		errOut:     errOut,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "slidesense",
		Short: "Voice command detection for presentation control",
		Long: `slidesense turns transcribed speech into presentation commands
(next slide, previous slide, start/stop show, captions, ...).

Start detecting from stdin:   slidesense run
Inspect an utterance:         slidesense score "nekst slaid"
Review past detections:       slidesense analyze`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initLogging,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "slidesense.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override server.log_level (debug|info|warn|error)")

	root.AddCommand(
		runCmd(c),
		scoreCmd(c),
		variantsCmd(c),
		analyzeCmd(c),
		commandsCmd(c),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "slidesense %s\n", version)
			},
		},
	)
	return root
}

// initLogging installs a text logger on stderr whose level follows c.level.
func (c *cli) initLogging(*cobra.Command, []string) error {
	if c.logLevel != "" && !config.LogLevel(c.logLevel).IsValid() {
		return fmt.Errorf("invalid --log-level %q", c.logLevel)
	}
	c.level.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: &c.level})))
	return nil
}

// loadConfig loads the config file. A missing file is only an error when
// --config was given explicitly; otherwise the defaults are used. The
// second return value reports whether a file was read.
func (c *cli) loadConfig(cmd *cobra.Command) (*config.Config, bool, error) {
	cfg, err := config.Load(c.configPath)
	fromFile := true
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		slog.Debug("no config file, using defaults", "path", c.configPath)
		cfg, fromFile = config.Default(), false
	default:
		return nil, false, err
	}

	if c.logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(c.logLevel)
	}
	c.level.Set(cfg.Server.LogLevel.Slog())
	return cfg, fromFile, nil
}
