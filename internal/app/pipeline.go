package app

import (
	"fmt"

	"github.com/MrWong99/slidesense/internal/adaptive"
	"github.com/MrWong99/slidesense/internal/config"
	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/internal/sanitize"
	"github.com/MrWong99/slidesense/internal/scoring"
	"github.com/MrWong99/slidesense/internal/variants"
	"github.com/MrWong99/slidesense/pkg/command"
)

// Pipeline is one fully built detection stack. Rebuilding it discards the
// adaptive state.
type Pipeline struct {
	Table      *command.Table
	Expanded   map[command.ID][]string
	Engine     *scoring.Engine
	Controller *adaptive.Controller
	Session    *detect.Session
}

// BuildPipeline constructs the command table, variant sets, scoring engine,
// adaptive controller and detection session described by cfg.
func BuildPipeline(cfg *config.Config) (*Pipeline, error) {
	tbl, err := cfg.CommandTable()
	if err != nil {
		return nil, fmt.Errorf("app: command table: %w", err)
	}
	d := cfg.Detection

	gen := variants.New(
		variants.WithRegion(d.Region),
		variants.WithMaxVariants(d.MaxVariants),
	)
	expanded := gen.ExpandAll(tbl)

	engine := scoring.New(tbl, expanded,
		scoring.WithStrategies(d.Strategies.Set()),
		scoring.WithFuzzyThreshold(d.FuzzyThreshold),
	)
	controller := adaptive.New(tbl,
		adaptive.WithStep(cfg.Adaptive.Step),
		adaptive.WithWindow(cfg.Adaptive.Window),
		adaptive.WithStreak(cfg.Adaptive.Streak),
		adaptive.WithBandOffset(d.ConfirmationBandOffset),
	)
	session := detect.New(engine, controller,
		detect.WithSanitizer(sanitize.New(sanitize.WithMaxLength(d.MaxUtteranceLength))),
		detect.WithCooldown(d.Cooldown()),
		detect.WithConfirmTimeout(d.ConfirmTimeout()),
		detect.WithConfirmationPhrases(d.Affirmative, d.Negative),
	)

	return &Pipeline{
		Table:      tbl,
		Expanded:   expanded,
		Engine:     engine,
		Controller: controller,
		Session:    session,
	}, nil
}
