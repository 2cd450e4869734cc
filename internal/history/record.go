// Package history persists detection outcomes and analyses them offline.
//
// Every [detect.Result] the front end produces is turned into a [Record] and
// appended to one or more [Store] implementations through a [Recorder]. The
// JSON-lines [FileStore] is always available; [PostgresStore] is optional.
// [Analyze] reads the records back and suggests new phrases for utterances
// the engine could not place.
package history

import (
	"context"
	"time"

	"github.com/MrWong99/slidesense/internal/detect"
	"github.com/MrWong99/slidesense/pkg/command"
)

// Record is one detection outcome.
type Record struct {
	Time       time.Time  `json:"time"`
	Utterance  string     `json:"utterance"`
	Kind       string     `json:"kind"`
	Command    command.ID `json:"command,omitempty"`
	Score      float64    `json:"score"`
	Confidence int        `json:"confidence"`
	Threshold  float64    `json:"threshold"`
	Reason     string     `json:"reason,omitempty"`
	Phrase     string     `json:"phrase,omitempty"`
	Strategy   string     `json:"strategy,omitempty"`
}

// FromResult converts a detection result observed at t into a [Record].
func FromResult(t time.Time, r detect.Result) Record {
	rec := Record{
		Time:       t.UTC(),
		Utterance:  r.Utterance,
		Kind:       r.Kind.String(),
		Command:    r.Command,
		Score:      r.Score,
		Confidence: r.Confidence,
		Threshold:  r.Threshold,
		Reason:     r.Reason,
		Phrase:     r.Phrase,
	}
	if r.Strategy != 0 {
		rec.Strategy = r.Strategy.String()
	}
	return rec
}

// Recognized reports whether the record triggered a command.
func (r Record) Recognized() bool { return r.Kind == detect.KindMatched.String() }

// Unrecognized reports whether the record is a failed attempt: the engine
// found no acceptable command or the user cancelled a confirmation.
func (r Record) Unrecognized() bool {
	switch r.Kind {
	case detect.KindUnknown.String(), detect.KindNoMatch.String(), detect.KindCancelled.String():
		return true
	}
	return false
}

// Store persists records.
type Store interface {
	// Append writes one record.
	Append(ctx context.Context, rec Record) error

	// Load returns every stored record, oldest first.
	Load(ctx context.Context) ([]Record, error)

	// Check reports whether the store can accept writes.
	Check(ctx context.Context) error

	Close() error
}
