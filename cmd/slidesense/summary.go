package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/slidesense/internal/adaptive"
	"github.com/MrWong99/slidesense/internal/config"
	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/pkg/command"
)

// ── Per-utterance output ──────────────────────────────────────────────────────

func printResult(w io.Writer, tbl *command.Table, r detect.Result) {
	switch r.Kind {
	case detect.KindMatched:
		action := ""
		if def, ok := tbl.Lookup(r.Command); ok && def.Action != "" {
			action = " [" + def.Action + "]"
		}
		fmt.Fprintf(w, "matched   %-16s%s score=%.1f threshold=%.1f confidence=%d%% strategy=%s phrase=%q\n",
			r.Command, action, r.Score, r.Threshold, r.Confidence, r.Strategy, r.Phrase)
	case detect.KindPendingConfirmation:
		fmt.Fprintf(w, "confirm?  %-16s score=%.1f threshold=%.1f confidence=%d%%  (reply yes/no)\n",
			r.Command, r.Score, r.Threshold, r.Confidence)
	case detect.KindUnknown:
		reason := ""
		if r.Reason != "" {
			reason = " reason=" + r.Reason
		}
		fmt.Fprintf(w, "unknown   %q best=%s score=%.1f threshold=%.1f%s\n",
			r.Utterance, r.Command, r.Score, r.Threshold, reason)
	case detect.KindNoMatch:
		fmt.Fprintf(w, "no match  %q\n", r.Utterance)
	case detect.KindSuppressedByCooldown:
		fmt.Fprintf(w, "cooldown  %q ignored\n", r.Utterance)
	case detect.KindCancelled:
		fmt.Fprintf(w, "cancelled %s reason=%s\n", r.Command, r.Reason)
	case detect.KindRejected:
		fmt.Fprintf(w, "rejected  %q reason=%s\n", r.Utterance, r.Reason)
	}
}

// ── Startup / shutdown summaries ──────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, tbl *command.Table, fromFile bool, path string) {
	d := cfg.Detection
	source := "(defaults)"
	if fromFile {
		source = path
	}
	fmt.Fprintln(w, "╔═══════════════════════════════════════════╗")
	fmt.Fprintln(w, "║       slidesense · startup summary        ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════════╣")
	summaryLine(w, "Config", source)
	summaryLine(w, "Commands", fmt.Sprintf("%d", tbl.Len()))
	summaryLine(w, "Strategies", d.Strategies.Set().String())
	summaryLine(w, "Region", string(d.Region))
	summaryLine(w, "Cooldown", d.Cooldown().String())
	summaryLine(w, "Confirm window", d.ConfirmTimeout().String())
	summaryLine(w, "History", historySummary(cfg.History))
	if cfg.Server.ListenAddr != "" {
		summaryLine(w, "Listen addr", cfg.Server.ListenAddr)
	} else {
		summaryLine(w, "Listen addr", "(disabled)")
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════════╝")
}

func historySummary(h config.HistoryConfig) string {
	var sinks []string
	if h.PostgresDSN != "" {
		sinks = append(sinks, "postgres")
	}
	if h.File != "" {
		sinks = append(sinks, h.File)
	}
	if len(sinks) == 0 {
		return "(disabled)"
	}
	return strings.Join(sinks, " → ")
}

func summaryLine(w io.Writer, label, value string) {
	if r := []rune(value); len(r) > 24 {
		value = string(r[:23]) + "…"
	}
	fmt.Fprintf(w, "║  %-14s : %-24s ║\n", label, value)
}

func printShutdownSummary(w io.Writer, tbl *command.Table, states []adaptive.State) {
	var hits, misses int
	for _, s := range states {
		hits += s.Successes
		misses += s.Failures
	}
	fmt.Fprintf(w, "\nsession summary: %d accepted, %d missed\n", hits, misses)
	for _, s := range states {
		if s.Successes == 0 && s.Failures == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-16s ok=%-3d miss=%-3d rate=%5.1f%% threshold=%.1f (weight %d)\n",
			s.Command, s.Successes, s.Failures, 100*s.SuccessRate(), s.Threshold, tbl.Weight(s.Command))
	}
}
