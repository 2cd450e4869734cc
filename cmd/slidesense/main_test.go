package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// execute runs the root command with args against a private registry and
// returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &out, &errOut)
	reg := prometheus.NewRegistry()
	c.registerer, c.gatherer = reg, reg

	root := newRootCmd(c)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	if testing.Verbose() && errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slidesense.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func missingConfig(t *testing.T) []string {
	return []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "slidesense dev") {
		t.Errorf("output = %q", out)
	}
}

func TestScore_ExactMatch(t *testing.T) {
	out, err := execute(t, "", "score", "next", "slide")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, want := range []string{"COMMAND", "next", "exact", "verdict: matched"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScore_RejectsSymbols(t *testing.T) {
	out, err := execute(t, "", "score", "<script>")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.HasPrefix(out, "rejected:") {
		t.Errorf("output = %q", out)
	}
}

func TestCommands_ListsTable(t *testing.T) {
	out, err := execute(t, "", "commands")
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	for _, want := range []string{"next", "previous", "open_slideshow", "stop", "RIGHT", "F5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCommands_HonoursConfig(t *testing.T) {
	path := writeConfig(t, "commands:\n  - id: help\n    disabled: true\n")
	out, err := execute(t, "", "list", "--config", path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "help menu") {
		t.Errorf("disabled command listed:\n%s", out)
	}
}

func TestVariants_FiltersByCommand(t *testing.T) {
	out, err := execute(t, "", "variants", "next", "--region", "none")
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if !strings.HasPrefix(out, "next (") || !strings.Contains(out, "  next slide\n") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "previous (") {
		t.Errorf("unfiltered output:\n%s", out)
	}
}

func TestVariants_Errors(t *testing.T) {
	if _, err := execute(t, "", "variants", "reboot"); err == nil {
		t.Error("expected error for unknown command")
	}
	if _, err := execute(t, "", "variants", "--region", "klingon"); err == nil {
		t.Error("expected error for unknown region")
	}
}

func TestAnalyze_File(t *testing.T) {
	hist := filepath.Join(t.TempDir(), "history.jsonl")
	lines := `{"time":"2026-01-01T10:00:00Z","utterance":"next slide","kind":"matched","command":"next","score":30,"confidence":100,"threshold":10}
{"time":"2026-01-01T10:00:05Z","utterance":"next slaid","kind":"unknown","command":"next","score":2,"confidence":7,"threshold":10}
`
	if err := os.WriteFile(hist, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	args := append([]string{"analyze", "--file", hist}, missingConfig(t)...)
	// An explicit --config that does not exist is an error.
	if _, err := execute(t, "", args...); err == nil {
		t.Fatal("expected error for explicit missing config")
	}

	out, err := execute(t, "", "analyze", "--file", hist)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"utterances:   2", "success rate: 50.0%", "next (1 suggestions)", `"next slaid"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyze_NoHistory(t *testing.T) {
	if _, err := execute(t, "", "analyze"); err == nil {
		t.Error("expected error without a history sink")
	}
}

func TestRun_ReadsStdinUntilEOF(t *testing.T) {
	dir := t.TempDir()
	hist := filepath.Join(dir, "history.jsonl")
	path := writeConfig(t, "server:\n  listen_addr: \"\"\nhistory:\n  file: "+hist+"\n")

	out, err := execute(t, "next slide\nnext slide\n", "run", "--config", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"startup summary", "matched   next", "cooldown  \"next slide\" ignored", "session summary: 1 accepted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(hist)
	if err != nil {
		t.Fatalf("history file: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("history lines = %d, want 2", n)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "", "commands", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Errorf("err = %v", err)
	}
}
