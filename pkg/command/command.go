// Package command defines the closed set of voice commands understood by
// slidesense and the immutable table of canonical phrases that describes them.
//
// A [Table] is built once at startup (usually from [Default] with per-command
// overrides applied by the configuration layer) and is never mutated
// afterwards. Downstream components index their per-command state by [ID] and
// rely on the table's definition order for deterministic tie-breaking.
package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ID identifies a command. The set of valid IDs is closed; see [IDs].
type ID string

const (
	Next           ID = "next"
	Previous       ID = "previous"
	OpenSlideshow  ID = "open_slideshow"
	CloseSlideshow ID = "close_slideshow"
	Help           ID = "help"
	Stop           ID = "stop"
	TestMic        ID = "test"
	ToggleNoise    ID = "noise"
	PopupOn        ID = "popup_on"
	PopupOff       ID = "popup_off"
	CaptionOn      ID = "caption_on"
	CaptionOff     ID = "caption_off"
	ChangeLanguage ID = "change_language"
	ShowAnalytics  ID = "show_analytics"
)

var allIDs = []ID{
	Next, Previous, OpenSlideshow, CloseSlideshow, Help, Stop, TestMic,
	ToggleNoise, PopupOn, PopupOff, CaptionOn, CaptionOff, ChangeLanguage,
	ShowAnalytics,
}

// IDs returns every known command ID in canonical table order.
func IDs() []ID {
	return slices.Clone(allIDs)
}

// IsValid reports whether id is one of the known command IDs.
func (id ID) IsValid() bool {
	return slices.Contains(allIDs, id)
}

// String returns the ID as a plain string.
func (id ID) String() string { return string(id) }

// Definition describes a single command.
type Definition struct {
	// ID is the unique command identifier.
	ID ID

	// Phrases lists the canonical phrases in priority order. All phrases are
	// lower-case with single spaces.
	Phrases []string

	// Weight is the command's base priority. Destructive or exit commands
	// carry higher weights so that they win ties and start with a stricter
	// acceptance threshold.
	Weight int

	// Description is a short human-readable label.
	Description string

	// Action is an opaque hint for the actuator (e.g. "F5", "ESC").
	Action string
}

// Table is an ordered, immutable collection of command definitions.
// The zero value is an empty table.
type Table struct {
	defs  []Definition
	index map[ID]int
}

var (
	// ErrUnknownCommand is returned when a definition carries an ID outside
	// the closed command set.
	ErrUnknownCommand = errors.New("command: unknown command id")

	// ErrDuplicateCommand is returned when the same ID is defined twice.
	ErrDuplicateCommand = errors.New("command: duplicate command id")
)

// NewTable validates defs and returns a [Table] holding deep copies of them.
// Phrases are normalised (trimmed, lower-cased, whitespace collapsed) and
// de-duplicated while preserving order.
func NewTable(defs ...Definition) (*Table, error) {
	t := &Table{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[ID]int, len(defs)),
	}
	var errs []error
	for i, d := range defs {
		if !d.ID.IsValid() {
			errs = append(errs, fmt.Errorf("definition %d: %w: %q", i, ErrUnknownCommand, d.ID))
			continue
		}
		if _, dup := t.index[d.ID]; dup {
			errs = append(errs, fmt.Errorf("definition %d: %w: %q", i, ErrDuplicateCommand, d.ID))
			continue
		}
		if d.Weight <= 0 {
			errs = append(errs, fmt.Errorf("definition %d (%s): weight must be positive, got %d", i, d.ID, d.Weight))
			continue
		}
		phrases := normalisePhrases(d.Phrases)
		if len(phrases) == 0 {
			errs = append(errs, fmt.Errorf("definition %d (%s): at least one phrase is required", i, d.ID))
			continue
		}
		d.Phrases = phrases
		t.index[d.ID] = len(t.defs)
		t.defs = append(t.defs, d)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Len returns the number of definitions.
func (t *Table) Len() int { return len(t.defs) }

// Definitions returns a copy of the definitions in table order.
func (t *Table) Definitions() []Definition {
	out := make([]Definition, len(t.defs))
	for i, d := range t.defs {
		d.Phrases = slices.Clone(d.Phrases)
		out[i] = d
	}
	return out
}

// Lookup returns the definition for id.
func (t *Table) Lookup(id ID) (Definition, bool) {
	i, ok := t.index[id]
	if !ok {
		return Definition{}, false
	}
	d := t.defs[i]
	d.Phrases = slices.Clone(d.Phrases)
	return d, true
}

// Index returns the position of id in the table, or -1.
func (t *Table) Index(id ID) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Weight returns the weight of id, or 0 when id is not in the table.
func (t *Table) Weight(id ID) int {
	if i, ok := t.index[id]; ok {
		return t.defs[i].Weight
	}
	return 0
}

// normalisePhrases lower-cases and collapses whitespace in each phrase,
// dropping empties and duplicates.
func normalisePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, p := range in {
		p = strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
