// Package detect runs the per-utterance detection state machine.
//
// A [Session] combines a scorer, an adaptive threshold controller and a
// sanitiser into a single synchronous call, [Session.Detect], that classifies
// one utterance and advances the session state:
//
//	Idle ──matched──▶ Cooldown ──cooldown elapsed──▶ Idle
//	Idle ──in band──▶ PendingConfirmation ──yes──▶ Cooldown
//	                  PendingConfirmation ──no / timeout──▶ Idle
//
// The session never reads the wall clock. Callers pass the current time to
// every call, and drive confirmation timeouts with [Session.Expire], so tests
// and replays can use a synthetic clock.
//
// A Session is not safe for concurrent use. Run one session per audio
// source.
package detect

import (
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/slidesense/internal/adaptive"
	"github.com/MrWong99/slidesense/internal/sanitize"
	"github.com/MrWong99/slidesense/internal/scoring"
)

const (
	defaultCooldown       = 2 * time.Second
	defaultConfirmTimeout = 5 * time.Second

	// defaultHighImpactWeight is the weight of the built-in exit and stop
	// commands.
	defaultHighImpactWeight = 15
)

var (
	defaultAffirmative = []string{
		"yes", "ya", "iya", "yep", "yeah", "confirm", "ok", "okay", "oke", "benar", "lanjutkan",
	}
	defaultNegative = []string{
		"no", "tidak", "nggak", "enggak", "cancel", "batal", "jangan", "bukan",
	}
)

// Scorer finds the best command for a sanitised utterance. It is satisfied by
// [scoring.Engine].
type Scorer interface {
	Score(utterance string) (scoring.Candidate, bool)
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithSanitizer replaces the default sanitiser.
func WithSanitizer(s *sanitize.Sanitizer) Option {
	return func(sess *Session) {
		if s != nil {
			sess.sanitizer = s
		}
	}
}

// WithCooldown sets how long utterances are ignored after an accepted
// command. Default: 2s. Negative values are ignored.
func WithCooldown(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

// WithConfirmTimeout sets how long a pending confirmation waits for a reply.
// Default: 5s. Non-positive values are ignored.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.confirmTimeout = d
		}
	}
}

// WithHighImpactWeight sets the weight from which a command counts as high
// impact. A high-impact command whose phrase was only found inside a longer
// word asks for confirmation even above its threshold. Default: 15.
// Non-positive values are ignored.
func WithHighImpactWeight(w int) Option {
	return func(s *Session) {
		if w > 0 {
			s.highImpactWeight = w
		}
	}
}

// WithConfirmationPhrases replaces the affirmative and negative reply sets.
// A nil slice keeps the corresponding default.
func WithConfirmationPhrases(affirmative, negative []string) Option {
	return func(s *Session) {
		if affirmative != nil {
			s.affirmative = phraseSet(affirmative)
		}
		if negative != nil {
			s.negative = phraseSet(negative)
		}
	}
}

// Session is a single detection state machine.
type Session struct {
	scorer           Scorer
	controller       *adaptive.Controller
	sanitizer        *sanitize.Sanitizer
	cooldown         time.Duration
	confirmTimeout   time.Duration
	highImpactWeight int
	affirmative      map[string]struct{}
	negative         map[string]struct{}

	state      State
	acceptedAt time.Time
	pending    Pending
}

// New returns an idle [Session]. The session takes exclusive ownership of
// controller.
func New(scorer Scorer, controller *adaptive.Controller, opts ...Option) *Session {
	s := &Session{
		scorer:           scorer,
		controller:       controller,
		sanitizer:        sanitize.New(),
		cooldown:         defaultCooldown,
		confirmTimeout:   defaultConfirmTimeout,
		highImpactWeight: defaultHighImpactWeight,
		affirmative:      phraseSet(defaultAffirmative),
		negative:         phraseSet(defaultNegative),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state. A cooldown that has elapsed is reported
// as [StateCooldown] until the next call that passes the time.
func (s *Session) State() State { return s.state }

// Pending returns the command awaiting confirmation, if any.
func (s *Session) Pending() (Pending, bool) {
	if s.state != StatePendingConfirmation {
		return Pending{}, false
	}
	return s.pending, true
}

// Detect classifies utterance at time now and advances the state machine.
func (s *Session) Detect(now time.Time, utterance string) Result {
	switch s.state {
	case StateCooldown:
		if now.Sub(s.acceptedAt) < s.cooldown {
			return Result{Kind: KindSuppressedByCooldown, Utterance: utterance}
		}
		s.transition(StateIdle)
	case StatePendingConfirmation:
		if !now.Before(s.pending.Deadline) {
			return s.cancel(ReasonTimeout)
		}
		return s.confirm(now, utterance)
	}
	return s.classify(now, utterance)
}

// Expire cancels a pending confirmation whose deadline has passed. It
// returns false when nothing expired. An elapsed cooldown is cleared as a
// side effect.
func (s *Session) Expire(now time.Time) (Result, bool) {
	switch s.state {
	case StatePendingConfirmation:
		if !now.Before(s.pending.Deadline) {
			return s.cancel(ReasonTimeout), true
		}
	case StateCooldown:
		if now.Sub(s.acceptedAt) >= s.cooldown {
			s.transition(StateIdle)
		}
	}
	return Result{}, false
}

func (s *Session) classify(now time.Time, raw string) Result {
	text, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return Result{Kind: KindRejected, Reason: string(sanitize.ReasonOf(err)), Utterance: raw}
	}

	cand, ok := s.scorer.Score(text)
	if !ok {
		return Result{Kind: KindNoMatch, Utterance: text}
	}

	// Only whitelisted commands tracked by the controller may reach the
	// actuator. Anything else is reported and never recorded.
	if !cand.Command.IsValid() || !s.controller.Has(cand.Command) {
		slog.Warn("detect: scorer returned a command outside the table", "command", cand.Command)
		res := resultFor(cand, 0, text)
		res.Kind = KindUnknown
		res.Reason = ReasonNotAllowed
		return res
	}

	threshold := s.controller.Threshold(cand.Command)
	res := resultFor(cand, threshold, text)

	switch {
	case cand.Score >= threshold && s.needsConfirmation(cand):
		res.Kind = KindPendingConfirmation
		res.Reason = ReasonPartialWord
		s.pending = Pending{
			Candidate: cand,
			Threshold: threshold,
			Utterance: text,
			Deadline:  now.Add(s.confirmTimeout),
		}
		s.transition(StatePendingConfirmation)
	case cand.Score >= threshold:
		res.Kind = KindMatched
		s.controller.RecordSuccess(cand.Command, cand.Score)
		s.accept(now)
	case s.controller.ShouldOfferConfirmation(cand.Command, cand.Score):
		res.Kind = KindPendingConfirmation
		s.controller.RecordFailure(cand.Command, text, cand.Score)
		s.pending = Pending{
			Candidate: cand,
			Threshold: threshold,
			Utterance: text,
			Deadline:  now.Add(s.confirmTimeout),
		}
		s.transition(StatePendingConfirmation)
	default:
		res.Kind = KindUnknown
		s.controller.RecordFailure(cand.Command, text, cand.Score)
	}
	return res
}

// needsConfirmation reports whether a high-impact command matched only
// inside a longer word, as "stop" does in "stopwatch".
func (s *Session) needsConfirmation(cand scoring.Candidate) bool {
	return cand.Partial && cand.Weight >= s.highImpactWeight
}

func (s *Session) confirm(now time.Time, raw string) Result {
	text, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return Result{Kind: KindRejected, Reason: string(sanitize.ReasonOf(err)), Utterance: raw}
	}

	if !s.isAffirmative(text) {
		reason := ReasonNotConfirmed
		if s.isNegative(text) {
			reason = ReasonDeclined
		}
		res := s.cancel(reason)
		res.Utterance = text
		return res
	}

	p := s.pending
	res := resultFor(p.Candidate, p.Threshold, text)
	res.Kind = KindMatched
	if p.Candidate.Score >= p.Threshold {
		// Partial-word match that already cleared the threshold.
		s.controller.RecordSuccess(p.Candidate.Command, p.Candidate.Score)
	} else {
		s.controller.RecordConfirmed(p.Candidate.Command, p.Candidate.Score)
	}
	s.pending = Pending{}
	s.accept(now)
	return res
}

func (s *Session) cancel(reason string) Result {
	p := s.pending
	res := resultFor(p.Candidate, p.Threshold, p.Utterance)
	res.Kind = KindCancelled
	res.Reason = reason
	s.controller.RecordFailure(p.Candidate.Command, p.Utterance, p.Candidate.Score)
	s.pending = Pending{}
	s.transition(StateIdle)
	return res
}

func (s *Session) accept(now time.Time) {
	s.acceptedAt = now
	s.transition(StateCooldown)
}

func (s *Session) transition(to State) {
	if s.state == to {
		return
	}
	slog.Debug("detect: state transition", "from", s.state, "to", to)
	s.state = to
}

func (s *Session) isAffirmative(text string) bool { return allIn(text, s.affirmative) }

func (s *Session) isNegative(text string) bool { return allIn(text, s.negative) }

// allIn reports whether text, or every word of it, is in set. Surrounding
// punctuation is ignored.
func allIn(text string, set map[string]struct{}) bool {
	text = strings.Trim(text, ".,!?'-: ")
	if _, ok := set[text]; ok {
		return true
	}
	words := strings.Fields(text)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, ok := set[strings.Trim(w, ".,!?'-:")]; !ok {
			return false
		}
	}
	return true
}

func resultFor(c scoring.Candidate, threshold float64, utterance string) Result {
	return Result{
		Command:    c.Command,
		Score:      c.Score,
		Confidence: c.Confidence(),
		Threshold:  threshold,
		Phrase:     c.Phrase,
		Strategy:   c.Strategy,
		Utterance:  utterance,
	}
}

func phraseSet(phrases []string) map[string]struct{} {
	out := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		p = sanitize.Normalize(p)
		if p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}
