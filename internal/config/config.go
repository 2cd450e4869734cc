// Package config provides the configuration schema and loader for the
// slidesense command detector.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/slidesense/internal/scoring"
	"github.com/MrWong99/slidesense/internal/variants"
	"github.com/MrWong99/slidesense/pkg/command"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to the matching [slog.Level]. Unknown levels map to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detection DetectionConfig `yaml:"detection"`
	Adaptive  AdaptiveConfig  `yaml:"adaptive"`
	Commands  []CommandConfig `yaml:"commands"`
	History   HistoryConfig   `yaml:"history"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9464"). Empty disables the HTTP listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It can be changed without a restart.
	LogLevel LogLevel `yaml:"log_level"`
}

// DetectionConfig tunes the scoring engine and the detection session.
// Zero values select the defaults listed on each field.
type DetectionConfig struct {
	// CooldownSeconds suppresses utterances after an accepted command.
	// Default: 2.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`

	// ConfirmTimeoutSeconds is how long a confirmation prompt waits for a
	// reply. Default: 5.
	ConfirmTimeoutSeconds float64 `yaml:"confirm_timeout_seconds"`

	// ConfirmationBandOffset is the width of the band below the threshold
	// in which a confirmation is offered. Default: 5.
	ConfirmationBandOffset float64 `yaml:"confirmation_band_offset"`

	// FuzzyThreshold is the minimum Levenshtein ratio (0-100). Default: 85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MaxUtteranceLength caps utterances in runes. Default: 120.
	MaxUtteranceLength int `yaml:"max_utterance_length"`

	// Region selects the accent table for variant generation.
	// Default: mixed.
	Region variants.Region `yaml:"region"`

	// MaxVariants caps generated variants per phrase. Default: 50.
	MaxVariants int `yaml:"max_variants"`

	Strategies StrategiesConfig `yaml:"strategies"`

	// Affirmative and Negative replace the confirmation reply sets.
	Affirmative []string `yaml:"affirmative"`
	Negative    []string `yaml:"negative"`
}

// StrategiesConfig toggles the optional scoring strategies. Omitted toggles
// are enabled.
type StrategiesConfig struct {
	Fuzzy        *bool `yaml:"fuzzy"`
	Phonetic     *bool `yaml:"phonetic"`
	LooseOverlap *bool `yaml:"loose_overlap"`
}

// Set converts the toggles to a [scoring.Set].
func (s StrategiesConfig) Set() scoring.Set {
	set := scoring.All
	if s.Fuzzy != nil && !*s.Fuzzy {
		set = set.Without(scoring.StrategyFuzzy)
	}
	if s.Phonetic != nil && !*s.Phonetic {
		set = set.Without(scoring.StrategyPhonetic)
	}
	if s.LooseOverlap != nil && !*s.LooseOverlap {
		set = set.Without(scoring.StrategyLooseOverlap)
	}
	return set
}

// Cooldown returns CooldownSeconds as a duration.
func (d DetectionConfig) Cooldown() time.Duration {
	return seconds(d.CooldownSeconds)
}

// ConfirmTimeout returns ConfirmTimeoutSeconds as a duration.
func (d DetectionConfig) ConfirmTimeout() time.Duration {
	return seconds(d.ConfirmTimeoutSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// AdaptiveConfig tunes the adaptive threshold controller.
type AdaptiveConfig struct {
	// Step is the size of one threshold adjustment. Default: 0.5.
	Step float64 `yaml:"step"`

	// Window is the number of recent outcomes kept per command. Default: 20.
	Window int `yaml:"window"`

	// Streak is the run of identical outcomes that triggers an adjustment.
	// Default: 3.
	Streak int `yaml:"streak"`
}

// CommandConfig overrides one entry of the built-in command table.
type CommandConfig struct {
	// ID selects the built-in command to override.
	ID command.ID `yaml:"id"`

	// Weight replaces the built-in weight when positive.
	Weight int `yaml:"weight"`

	// Phrases replaces the built-in phrase list when non-empty.
	Phrases []string `yaml:"phrases"`

	// ExtraPhrases are appended to the phrase list.
	ExtraPhrases []string `yaml:"extra_phrases"`

	// Disabled removes the command from the table.
	Disabled bool `yaml:"disabled"`
}

// HistoryConfig selects where detection outcomes are recorded.
type HistoryConfig struct {
	// File is a JSON-lines file that every outcome is appended to.
	File string `yaml:"file"`

	// PostgresDSN enables the PostgreSQL sink when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}

	d := &c.Detection
	if d.CooldownSeconds == 0 {
		d.CooldownSeconds = 2
	}
	if d.ConfirmTimeoutSeconds == 0 {
		d.ConfirmTimeoutSeconds = 5
	}
	if d.ConfirmationBandOffset == 0 {
		d.ConfirmationBandOffset = 5
	}
	if d.FuzzyThreshold == 0 {
		d.FuzzyThreshold = 85
	}
	if d.MaxUtteranceLength == 0 {
		d.MaxUtteranceLength = 120
	}
	if d.Region == "" {
		d.Region = variants.RegionMixed
	}
	if d.MaxVariants == 0 {
		d.MaxVariants = 50
	}

	a := &c.Adaptive
	if a.Step == 0 {
		a.Step = 0.5
	}
	if a.Window == 0 {
		a.Window = 20
	}
	if a.Streak == 0 {
		a.Streak = 3
	}
}

// CommandTable applies the command overrides to the built-in table.
func (c *Config) CommandTable() (*command.Table, error) {
	overrides := make(map[command.ID]CommandConfig, len(c.Commands))
	for _, o := range c.Commands {
		overrides[o.ID] = o
	}

	var defs []command.Definition
	for _, d := range command.DefaultDefinitions() {
		o, ok := overrides[d.ID]
		if !ok {
			defs = append(defs, d)
			continue
		}
		if o.Disabled {
			continue
		}
		if o.Weight > 0 {
			d.Weight = o.Weight
		}
		if len(o.Phrases) > 0 {
			d.Phrases = append([]string(nil), o.Phrases...)
		}
		d.Phrases = append(d.Phrases, o.ExtraPhrases...)
		defs = append(defs, d)
	}
	return command.NewTable(defs...)
}
