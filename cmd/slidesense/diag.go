package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/slidesense/internal/app"
	"github.com/MrWong99/slidesense/internal/history"
	"github.com/MrWong99/slidesense/internal/resilience"
	"github.com/MrWong99/slidesense/internal/sanitize"
	"github.com/MrWong99/slidesense/internal/variants"
	"github.com/MrWong99/slidesense/pkg/command"
)

// ── score ─────────────────────────────────────────────────────────────────────

func scoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "score <utterance>...",
		Short: "Rank every command against an utterance",
		Long: `score runs one utterance through a fresh detection pipeline and prints
the best candidate for every command that scored, followed by the verdict a
new session would return.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := app.BuildPipeline(cfg)
			if err != nil {
				return err
			}

			raw := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			clean, err := sanitize.New(sanitize.WithMaxLength(cfg.Detection.MaxUtteranceLength)).Sanitize(raw)
			if err != nil {
				fmt.Fprintf(out, "rejected: %v\n", err)
				return nil
			}

			ranked := p.Engine.Rank(clean)
			if len(ranked) == 0 {
				fmt.Fprintf(out, "no command matched %q\n", clean)
			} else {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "COMMAND\tSCORE\tTHRESHOLD\tBAND\tCONF\tSTRATEGY\tPHRASE")
				for _, cand := range ranked {
					fmt.Fprintf(tw, "%s\t%.2f\t%.1f\t%.1f\t%d%%\t%s\t%s\n",
						cand.Command, cand.Score,
						p.Controller.Threshold(cand.Command), p.Controller.BandLow(cand.Command),
						cand.Confidence(), cand.Strategy, cand.Phrase)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			fmt.Fprint(out, "\nverdict: ")
			printResult(out, p.Table, p.Session.Detect(time.Now(), raw))
			return nil
		},
	}
}

// ── variants ──────────────────────────────────────────────────────────────────

func variantsCmd(c *cli) *cobra.Command {
	var (
		region      string
		maxVariants int
		collisions  bool
	)
	cmd := &cobra.Command{
		Use:   "variants [command-id]...",
		Short: "Print the expanded phrase variants of each command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if region != "" {
				cfg.Detection.Region = variants.Region(region)
			}
			if maxVariants > 0 {
				cfg.Detection.MaxVariants = maxVariants
			}
			if !cfg.Detection.Region.IsValid() {
				return fmt.Errorf("unknown region %q", cfg.Detection.Region)
			}
			p, err := app.BuildPipeline(cfg)
			if err != nil {
				return err
			}

			ids := make([]command.ID, 0, len(args))
			for _, a := range args {
				id := command.ID(a)
				if _, ok := p.Table.Lookup(id); !ok {
					return fmt.Errorf("unknown or disabled command %q", a)
				}
				ids = append(ids, id)
			}

			out := cmd.OutOrStdout()
			if collisions {
				found := variants.Collisions(p.Table, p.Expanded)
				if len(found) == 0 {
					fmt.Fprintln(out, "no variant collisions")
					return nil
				}
				for _, col := range found {
					if len(ids) > 0 && !slices.ContainsFunc(col.Commands, func(id command.ID) bool { return slices.Contains(ids, id) }) {
						continue
					}
					names := make([]string, len(col.Commands))
					for i, id := range col.Commands {
						names[i] = id.String()
					}
					fmt.Fprintf(out, "%-32q %s\n", col.Phrase, strings.Join(names, ", "))
				}
				return nil
			}

			for _, d := range p.Table.Definitions() {
				if len(ids) > 0 && !slices.Contains(ids, d.ID) {
					continue
				}
				set := p.Expanded[d.ID]
				fmt.Fprintf(out, "%s (%d variants)\n", d.ID, len(set))
				for _, v := range set {
					fmt.Fprintf(out, "  %s\n", v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "override detection.region (none|javanese|sundanese|mixed)")
	cmd.Flags().IntVar(&maxVariants, "max", 0, "override detection.max_variants")
	cmd.Flags().BoolVar(&collisions, "collisions", false, "print phrases shared between commands instead")
	return cmd
}

// ── analyze ───────────────────────────────────────────────────────────────────

const suggestionsShown = 3

func analyzeCmd(c *cli) *cobra.Command {
	var (
		file    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarise the detection history and suggest new phrases",
		Long: `analyze loads the detection history, reports the recognition rate and
groups unrecognised utterances under the command they most resemble. Each
group is a list of phrase candidates worth adding to that command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			if file != "" {
				cfg.History.File = file
			}
			tbl, err := cfg.CommandTable()
			if err != nil {
				return err
			}

			rec, err := openHistory(cmd.Context(), cfg.History.PostgresDSN, cfg.History.File)
			if err != nil {
				return err
			}
			defer rec.Close()

			records, err := rec.Load(cmd.Context())
			if err != nil {
				return err
			}
			report := history.Analyze(records, tbl)

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "override history.file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	return cmd
}

// openHistory builds a recorder over the configured sinks, Postgres first.
func openHistory(ctx context.Context, dsn, file string) (*history.Recorder, error) {
	rec := history.NewRecorder(resilience.BreakerConfig{Name: "history"})
	if dsn != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err := history.NewPostgresStore(pctx, dsn)
		cancel()
		if err != nil {
			if file == "" {
				return nil, err
			}
			slog.Warn("postgres history unavailable, reading file", "err", err)
		} else {
			rec.Add(history.SinkPostgres, pg)
		}
	}
	if file != "" {
		rec.Add(history.SinkFile, history.NewFileStore(file))
	}
	if len(rec.Sinks()) == 0 {
		return nil, errors.New("no history configured: set history.file or pass --file")
	}
	return rec, nil
}

func printReport(w io.Writer, r history.Report) {
	fmt.Fprintf(w, "utterances:   %d\n", r.Total)
	fmt.Fprintf(w, "recognized:   %d\n", r.Recognized)
	fmt.Fprintf(w, "unrecognized: %d\n", r.Unrecognized)
	fmt.Fprintf(w, "success rate: %.1f%%\n", 100*r.SuccessRate)

	if len(r.Groups) == 0 {
		fmt.Fprintln(w, "\nno phrase suggestions")
	}
	for _, g := range r.Groups {
		fmt.Fprintf(w, "\n%s (%d suggestions)\n", g.Command, len(g.Suggestions))
		for i, s := range g.Suggestions {
			if i == suggestionsShown {
				fmt.Fprintf(w, "  ... and %d more\n", len(g.Suggestions)-suggestionsShown)
				break
			}
			fmt.Fprintf(w, "  %-32q %3.0f%%  x%d\n", s.Utterance, 100*s.Confidence, s.Count)
		}
	}
	if len(r.Unplaced) > 0 {
		fmt.Fprintf(w, "\n%d utterances matched no command\n", len(r.Unplaced))
	}
}

// ── commands ──────────────────────────────────────────────────────────────────

func commandsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"list"},
		Short:   "List the active command table",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			tbl, err := cfg.CommandTable()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWEIGHT\tACTION\tDESCRIPTION\tPHRASES")
			for _, d := range tbl.Definitions() {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
					d.ID, d.Weight, d.Action, d.Description, strings.Join(d.Phrases, ", "))
			}
			return tw.Flush()
		},
	}
}
