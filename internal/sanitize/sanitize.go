// Package sanitize normalises and validates raw ASR utterances before they
// reach the scoring engine.
//
// Sanitisation is a pure function: it NFC-normalises the text, trims it,
// collapses internal whitespace runs to single spaces and lower-cases it.
// The result is then checked against length bounds and a permitted alphabet
// of letters, digits, spaces and a handful of punctuation marks. Anything
// else is rejected so the downstream actuator never sees control characters
// or shell metacharacters.
package sanitize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	defaultMinLength = 2
	defaultMaxLength = 120
)

// allowedPunct is the punctuation permitted inside an utterance.
const allowedPunct = ".,!?'-:"

// Reason classifies a validation failure.
type Reason string

const (
	ReasonTooShort             Reason = "too_short"
	ReasonTooLong              Reason = "too_long"
	ReasonDisallowedCharacters Reason = "disallowed_characters"
)

// Sentinel errors matched by [ValidationError.Is].
var (
	ErrTooShort             = errors.New("sanitize: utterance too short")
	ErrTooLong              = errors.New("sanitize: utterance too long")
	ErrDisallowedCharacters = errors.New("sanitize: utterance contains disallowed characters")
)

// ValidationError is returned by [Sanitizer.Sanitize] for rejected input.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "sanitize: " + string(e.Reason)
	}
	return "sanitize: " + string(e.Reason) + ": " + e.Detail
}

// Is lets errors.Is match the sentinel error for e.Reason.
func (e *ValidationError) Is(target error) bool {
	switch e.Reason {
	case ReasonTooShort:
		return target == ErrTooShort
	case ReasonTooLong:
		return target == ErrTooLong
	case ReasonDisallowedCharacters:
		return target == ErrDisallowedCharacters
	}
	return false
}

// ReasonOf extracts the [Reason] from err. It returns "" when err is not a
// [*ValidationError].
func ReasonOf(err error) Reason {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}

// Option is a functional option for configuring a [Sanitizer].
type Option func(*Sanitizer)

// WithMaxLength sets the maximum utterance length in runes. Default: 120.
// Non-positive values are ignored.
func WithMaxLength(n int) Option {
	return func(s *Sanitizer) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// Sanitizer validates utterances. It is read-only after construction and
// safe for concurrent use.
type Sanitizer struct {
	minLength int
	maxLength int
}

// New returns a [Sanitizer] configured with opts.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		minLength: defaultMinLength,
		maxLength: defaultMaxLength,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MaxLength returns the configured maximum length in runes.
func (s *Sanitizer) MaxLength() int { return s.maxLength }

var defaultSanitizer = New()

// Sanitize runs the default [Sanitizer].
func Sanitize(raw string) (string, error) {
	return defaultSanitizer.Sanitize(raw)
}

// Sanitize normalises raw and validates the result. On success the returned
// string is lower-case, trimmed and single-spaced; sanitising it again yields
// the same string.
func (s *Sanitizer) Sanitize(raw string) (string, error) {
	text := Normalize(raw)

	n := utf8.RuneCountInString(text)
	if n < s.minLength {
		return "", &ValidationError{
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("%d characters, need at least %d", n, s.minLength),
		}
	}
	if n > s.maxLength {
		return "", &ValidationError{
			Reason: ReasonTooLong,
			Detail: fmt.Sprintf("%d characters, limit is %d", n, s.maxLength),
		}
	}
	for i, r := range text {
		if !allowed(r) {
			return "", &ValidationError{
				Reason: ReasonDisallowedCharacters,
				Detail: fmt.Sprintf("%q at byte %d", r, i),
			}
		}
	}
	return text, nil
}

// Normalize applies the normalisation steps of [Sanitizer.Sanitize] without
// validating the result.
func Normalize(raw string) string {
	text := norm.NFC.String(raw)
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ToLower(text)
	return norm.NFC.String(text)
}

func allowed(r rune) bool {
	switch {
	case r == ' ':
		return true
	case unicode.IsControl(r):
		return false
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.Is(unicode.Mn, r):
		return true
	}
	return strings.ContainsRune(allowedPunct, r)
}
