// Package adaptive tracks per-command acceptance thresholds that drift with
// the speaker's recent hit rate.
//
// Every command starts with its threshold equal to its weight. A streak of
// accepted detections tightens the threshold by one step; a streak of
// rejections loosens it by one step; a below-threshold score that the user
// confirms loosens it immediately. The threshold never leaves
// [weight, weight+10].
//
// Scores that fall short of the threshold by no more than the band offset
// are close enough to offer the user a confirmation prompt instead of
// rejecting outright (see [Controller.ShouldOfferConfirmation]).
//
// A Controller is owned by a single detection session and is not safe for
// concurrent use.
package adaptive

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/MrWong99/slidesense/pkg/command"
)

const (
	defaultStep       = 0.5
	defaultWindow     = 20
	defaultStreak     = 3
	defaultBandOffset = 5.0

	// maxRaise bounds how far a threshold may climb above the weight.
	maxRaise = 10.0
)

// Outcome is the recorded result of a single detection.
type Outcome uint8

const (
	// Accepted means the score cleared the threshold.
	Accepted Outcome = iota + 1
	// Rejected means the score fell short or a confirmation was declined.
	Rejected
	// Confirmed means a below-threshold score was accepted by the user.
	Confirmed
)

// String returns the outcome's lower-case name.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of one command's adaptive state.
type State struct {
	Command   command.ID
	Weight    int
	Recent    []Outcome
	Successes int
	Failures  int
	Threshold float64
	BandLow   float64

	// LastFailure is the most recent utterance recorded by RecordFailure.
	LastFailure string
}

// SuccessRate returns Successes / (Successes+Failures), or 0 when nothing
// has been recorded.
func (s State) SuccessRate() float64 {
	total := s.Successes + s.Failures
	if total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(total)
}

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithStep sets the amount a single adjustment moves a threshold.
// Default: 0.5. Non-positive values are ignored.
func WithStep(step float64) Option {
	return func(c *Controller) {
		if step > 0 {
			c.step = step
		}
	}
}

// WithWindow sets how many recent outcomes are kept per command.
// Default: 20. Non-positive values are ignored.
func WithWindow(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithStreak sets how many identical consecutive outcomes trigger an
// adjustment. Default: 3. Non-positive values are ignored.
func WithStreak(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.streak = n
		}
	}
}

// WithBandOffset sets the width of the confirmation band below the
// threshold. Default: 5. Non-positive values are ignored.
func WithBandOffset(offset float64) Option {
	return func(c *Controller) {
		if offset > 0 {
			c.bandOffset = offset
		}
	}
}

type commandState struct {
	weight      float64
	threshold   float64
	recent      []Outcome
	successes   int
	failures    int
	lastFailure string
}

// Controller holds the adaptive state of every command in a table.
type Controller struct {
	step       float64
	window     int
	streak     int
	bandOffset float64

	order  []command.ID
	states map[command.ID]*commandState
}

// New returns a [Controller] covering every command of tbl.
func New(tbl *command.Table, opts ...Option) *Controller {
	c := &Controller{
		step:       defaultStep,
		window:     defaultWindow,
		streak:     defaultStreak,
		bandOffset: defaultBandOffset,
		states:     make(map[command.ID]*commandState, tbl.Len()),
	}
	for _, o := range opts {
		o(c)
	}
	if c.streak > c.window {
		c.streak = c.window
	}
	for _, d := range tbl.Definitions() {
		c.order = append(c.order, d.ID)
		c.states[d.ID] = &commandState{
			weight:    float64(d.Weight),
			threshold: float64(d.Weight),
		}
	}
	return c
}

// Commands returns the tracked command IDs in table order.
func (c *Controller) Commands() []command.ID {
	return append([]command.ID(nil), c.order...)
}

// Has reports whether id is tracked. Every other per-command method panics
// for an untracked id.
func (c *Controller) Has(id command.ID) bool {
	_, ok := c.states[id]
	return ok
}

// Threshold returns the current acceptance threshold of id.
func (c *Controller) Threshold(id command.ID) float64 {
	return c.state(id).threshold
}

// BandLow returns the lowest score for which id offers a confirmation.
func (c *Controller) BandLow(id command.ID) float64 {
	return c.state(id).threshold - c.bandOffset
}

// ShouldOfferConfirmation reports whether score is inside the confirmation
// band of id: at least [Controller.BandLow] and below the threshold.
func (c *Controller) ShouldOfferConfirmation(id command.ID, score float64) bool {
	s := c.state(id)
	return score >= s.threshold-c.bandOffset && score < s.threshold
}

// RecordSuccess records an accepted detection of id.
func (c *Controller) RecordSuccess(id command.ID, score float64) {
	s := c.state(id)
	c.push(s, Accepted)
	s.successes++
	if c.tailIs(s, Accepted) {
		c.move(id, s, +c.step, "success streak", score)
	}
}

// RecordFailure records a rejected detection of id. utterance is kept for
// diagnostics.
func (c *Controller) RecordFailure(id command.ID, utterance string, score float64) {
	s := c.state(id)
	c.push(s, Rejected)
	s.failures++
	s.lastFailure = utterance
	if c.tailIs(s, Rejected) {
		c.move(id, s, -c.step, "failure streak", score)
	}
}

// RecordConfirmed records a below-threshold detection of id that the user
// confirmed. The threshold is loosened by one step.
func (c *Controller) RecordConfirmed(id command.ID, score float64) {
	s := c.state(id)
	c.push(s, Confirmed)
	s.successes++
	c.move(id, s, -c.step, "confirmed", score)
}

// Snapshot returns a copy of the state of id.
func (c *Controller) Snapshot(id command.ID) State {
	s := c.state(id)
	return State{
		Command:     id,
		Weight:      int(s.weight),
		Recent:      append([]Outcome(nil), s.recent...),
		Successes:   s.successes,
		Failures:    s.failures,
		Threshold:   s.threshold,
		BandLow:     s.threshold - c.bandOffset,
		LastFailure: s.lastFailure,
	}
}

// Snapshots returns the state of every command in table order.
func (c *Controller) Snapshots() []State {
	out := make([]State, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.Snapshot(id))
	}
	return out
}

// Reset restores every command to its initial state.
func (c *Controller) Reset() {
	for _, s := range c.states {
		*s = commandState{weight: s.weight, threshold: s.weight}
	}
}

func (c *Controller) state(id command.ID) *commandState {
	s, ok := c.states[id]
	if !ok {
		panic(fmt.Sprintf("adaptive: unknown command %q", id))
	}
	return s
}

func (c *Controller) push(s *commandState, o Outcome) {
	s.recent = append(s.recent, o)
	if over := len(s.recent) - c.window; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}

// tailIs reports whether the last streak outcomes all equal o.
func (c *Controller) tailIs(s *commandState, o Outcome) bool {
	if len(s.recent) < c.streak {
		return false
	}
	for _, got := range s.recent[len(s.recent)-c.streak:] {
		if got != o {
			return false
		}
	}
	return true
}

func (c *Controller) move(id command.ID, s *commandState, delta float64, why string, score float64) {
	prev := s.threshold
	s.threshold = math.Min(math.Max(prev+delta, s.weight), s.weight+maxRaise)
	c.check(id, s)
	if s.threshold != prev {
		slog.Debug("adaptive: threshold moved",
			"command", id,
			"reason", why,
			"score", score,
			"from", prev,
			"to", s.threshold)
	}
}

func (c *Controller) check(id command.ID, s *commandState) {
	if s.threshold < s.weight || s.threshold > s.weight+maxRaise {
		panic(fmt.Sprintf("adaptive: threshold %.2f of %s outside [%.0f, %.0f]",
			s.threshold, id, s.weight, s.weight+maxRaise))
	}
	if len(s.recent) > c.window {
		panic(fmt.Sprintf("adaptive: %s history holds %d outcomes, window is %d", id, len(s.recent), c.window))
	}
}
