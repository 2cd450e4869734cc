package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/slidesense/pkg/command"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields [Default].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. Call it after
// [Config.ApplyDefaults]. It returns a joined error listing every problem
// found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Detection
	d := cfg.Detection
	if d.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("detection.cooldown_seconds %.2f must not be negative", d.CooldownSeconds))
	}
	if d.ConfirmTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("detection.confirm_timeout_seconds %.2f must be positive", d.ConfirmTimeoutSeconds))
	}
	if d.ConfirmationBandOffset < 0 {
		errs = append(errs, fmt.Errorf("detection.confirmation_band_offset %.2f must be positive", d.ConfirmationBandOffset))
	}
	if d.FuzzyThreshold < 0 || d.FuzzyThreshold > 100 {
		errs = append(errs, fmt.Errorf("detection.fuzzy_threshold %.2f is out of range (0, 100]", d.FuzzyThreshold))
	}
	if d.MaxUtteranceLength < 2 {
		errs = append(errs, fmt.Errorf("detection.max_utterance_length %d must be at least 2", d.MaxUtteranceLength))
	}
	if !d.Region.IsValid() {
		errs = append(errs, fmt.Errorf("detection.region %q is invalid; valid values: none, javanese, sundanese, mixed", d.Region))
	}
	if d.MaxVariants < 0 {
		errs = append(errs, fmt.Errorf("detection.max_variants %d must be positive", d.MaxVariants))
	}

	// Adaptive
	a := cfg.Adaptive
	if a.Step < 0 || a.Step > 10 {
		errs = append(errs, fmt.Errorf("adaptive.step %.2f is out of range (0, 10]", a.Step))
	}
	if a.Window < 0 {
		errs = append(errs, fmt.Errorf("adaptive.window %d must be positive", a.Window))
	}
	if a.Streak < 0 {
		errs = append(errs, fmt.Errorf("adaptive.streak %d must be positive", a.Streak))
	}
	if a.Window > 0 && a.Streak > a.Window {
		errs = append(errs, fmt.Errorf("adaptive.streak %d exceeds adaptive.window %d", a.Streak, a.Window))
	}

	// Commands
	seen := make(map[command.ID]int, len(cfg.Commands))
	disabled := 0
	for i, c := range cfg.Commands {
		prefix := fmt.Sprintf("commands[%d]", i)
		if !c.ID.IsValid() {
			errs = append(errs, fmt.Errorf("%s.id %q is not a known command", prefix, c.ID))
			continue
		}
		if prev, ok := seen[c.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of commands[%d]", prefix, c.ID, prev))
			continue
		}
		seen[c.ID] = i
		if c.Weight < 0 {
			errs = append(errs, fmt.Errorf("%s.weight %d must not be negative", prefix, c.Weight))
		}
		if c.Disabled {
			disabled++
			if c.Weight != 0 || len(c.Phrases) > 0 || len(c.ExtraPhrases) > 0 {
				slog.Warn("config: overrides on a disabled command are ignored", "command", c.ID)
			}
		}
	}
	if disabled == len(command.IDs()) {
		errs = append(errs, errors.New("commands: every command is disabled"))
	}

	// History
	if cfg.History.File == "" && cfg.History.PostgresDSN == "" {
		slog.Warn("config: history.file and history.postgres_dsn are empty; detection outcomes will not be recorded")
	}

	return errors.Join(errs...)
}
