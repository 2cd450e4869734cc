package detect

import (
	"time"

	"github.com/MrWong99/slidesense/internal/scoring"
	"github.com/MrWong99/slidesense/pkg/command"
)

// Kind tags the outcome of a [Session.Detect] call.
type Kind uint8

const (
	// KindMatched means a command was accepted, either directly or after an
	// affirmative confirmation reply.
	KindMatched Kind = iota + 1

	// KindPendingConfirmation means the best score fell inside the
	// confirmation band. The session waits for a yes/no reply.
	KindPendingConfirmation

	// KindUnknown means the best candidate scored below the band.
	KindUnknown

	// KindNoMatch means no command produced a positive score.
	KindNoMatch

	// KindSuppressedByCooldown means the utterance arrived too soon after an
	// accepted command and was ignored without scoring.
	KindSuppressedByCooldown

	// KindCancelled means a pending confirmation was declined or timed out.
	KindCancelled

	// KindRejected means the utterance failed sanitisation.
	KindRejected
)

var kindNames = map[Kind]string{
	KindMatched:              "matched",
	KindPendingConfirmation:  "pending_confirmation",
	KindUnknown:              "unknown",
	KindNoMatch:              "no_match",
	KindSuppressedByCooldown: "suppressed_by_cooldown",
	KindCancelled:            "cancelled",
	KindRejected:             "rejected",
}

// String returns the kind's snake_case name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// Reasons reported in [Result.Reason] for Cancelled, Unknown and
// PendingConfirmation results.
const (
	ReasonDeclined     = "declined"
	ReasonNotConfirmed = "not_confirmed"
	ReasonTimeout      = "timeout"
	ReasonNotAllowed   = "not_allowed"
	ReasonPartialWord  = "partial_word"
)

// Result describes what a single utterance did to the session.
type Result struct {
	Kind Kind

	// Command is the best candidate, or the pending command for
	// confirmation replies. Empty for NoMatch, Rejected and
	// SuppressedByCooldown.
	Command command.ID

	Score float64

	// Confidence is Score as a rounded percentage of weight+20.
	Confidence int

	// Threshold is the command's acceptance threshold at decision time.
	Threshold float64

	// Reason explains Rejected and Cancelled results, Unknown results for
	// commands outside the table, and confirmations asked for partial-word
	// matches. For Rejected it holds the sanitize.Reason.
	Reason string

	Phrase   string
	Strategy scoring.Strategy

	// Utterance is the sanitised text, or the raw text when sanitisation
	// failed or was skipped.
	Utterance string
}

// Accepted reports whether the result should trigger the command's action.
func (r Result) Accepted() bool { return r.Kind == KindMatched }

// State is the session's position in the detection state machine.
type State uint8

const (
	StateIdle State = iota
	StateCooldown
	StatePendingConfirmation
)

// String returns the state's snake_case name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCooldown:
		return "cooldown"
	case StatePendingConfirmation:
		return "pending_confirmation"
	default:
		return "invalid"
	}
}

// Pending is a command awaiting a confirmation reply.
type Pending struct {
	Candidate scoring.Candidate
	Threshold float64
	Utterance string
	Deadline  time.Time
}
