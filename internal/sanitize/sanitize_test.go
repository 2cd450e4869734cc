package sanitize_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/slidesense/internal/sanitize"
)

func TestSanitize_Normalises(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"next slide", "next slide"},
		{"  Next   SLIDE  ", "next slide"},
		{"next\tslide\n", "next slide"},
		{"Buka Presentasi!", "buka presentasi!"},
		{"f5", "f5"},
		{"Café", "café"},
	}
	for _, tc := range tests {
		got, err := sanitize.Sanitize(tc.in)
		if err != nil {
			t.Errorf("Sanitize(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"  NEXT  slide ", "tutup presentasi", "help me, menu?", "mic-test: ok"}
	for _, in := range inputs {
		once, err := sanitize.Sanitize(in)
		if err != nil {
			t.Fatalf("Sanitize(%q): %v", in, err)
		}
		twice, err := sanitize.Sanitize(once)
		if err != nil {
			t.Fatalf("Sanitize(%q) second pass: %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestSanitize_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         string
		wantReason sanitize.Reason
		wantErr    error
	}{
		{"empty", "", sanitize.ReasonTooShort, sanitize.ErrTooShort},
		{"whitespace only", "   \t ", sanitize.ReasonTooShort, sanitize.ErrTooShort},
		{"single char", "x", sanitize.ReasonTooShort, sanitize.ErrTooShort},
		{"padded single char", "  x  ", sanitize.ReasonTooShort, sanitize.ErrTooShort},
		{"too long", strings.Repeat("a", 121), sanitize.ReasonTooLong, sanitize.ErrTooLong},
		{"shell injection", "next slide; rm -rf /", sanitize.ReasonDisallowedCharacters, sanitize.ErrDisallowedCharacters},
		{"command substitution", "$(reboot)", sanitize.ReasonDisallowedCharacters, sanitize.ErrDisallowedCharacters},
		{"escape sequence", "next\x1b[2J", sanitize.ReasonDisallowedCharacters, sanitize.ErrDisallowedCharacters},
		{"nul byte", "ne\x00xt", sanitize.ReasonDisallowedCharacters, sanitize.ErrDisallowedCharacters},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := sanitize.Sanitize(tc.in)
			if err == nil {
				t.Fatalf("Sanitize(%q) = %q, want error", tc.in, got)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tc.wantErr)
			}
			if r := sanitize.ReasonOf(err); r != tc.wantReason {
				t.Errorf("ReasonOf = %q, want %q", r, tc.wantReason)
			}
		})
	}
}

func TestSanitize_MaxLengthOption(t *testing.T) {
	t.Parallel()

	s := sanitize.New(sanitize.WithMaxLength(10))
	if _, err := s.Sanitize("next slide"); err != nil {
		t.Fatalf("10-char input rejected: %v", err)
	}
	if _, err := s.Sanitize("next slide!"); !errors.Is(err, sanitize.ErrTooLong) {
		t.Fatalf("11-char input: err = %v, want ErrTooLong", err)
	}
}

func TestReasonOf_NonValidationError(t *testing.T) {
	t.Parallel()

	if r := sanitize.ReasonOf(errors.New("boom")); r != "" {
		t.Errorf("ReasonOf(plain error) = %q, want empty", r)
	}
}
