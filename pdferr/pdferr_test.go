package pdferr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type refString string

func (r refString) String() string { return string(r) }

func TestIsMatchesKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", New(BrokenReference, "resolve", "missing"), ErrBrokenReference, true},
		{"other kind", New(BrokenReference, "resolve", "missing"), ErrDecode, false},
		{"wrapped twice", fmt.Errorf("load: %w", Wrap(TrailerNotFound, "xref", errors.New("no trailer"))), ErrTrailerNotFound, true},
		{"plain error", errors.New("boom"), ErrCorruptStructure, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Fatalf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(DecodeError, "x", nil) != nil {
		t.Fatalf("expected nil")
	}
	if AtOffset(DecodeError, "x", 3, nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := AtOffset(MalformedSyntax, "scan", 42, errors.New("unexpected ')'"))
	msg := err.Error()
	for _, want := range []string{"scan", "MalformedSyntax", "offset 42", "unexpected ')'"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	err = ForRef(BrokenReference, "resolve", refString("4 0 R"), errors.New("free entry"))
	if !strings.Contains(err.Error(), "(4 0 R)") {
		t.Fatalf("message %q missing ref", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Fatalf("nil is not fatal")
	}
	if !IsFatal(New(CorruptStructure, "load", "cycle")) {
		t.Fatalf("CorruptStructure should be fatal")
	}
	if IsFatal(New(InvalidOption, "apply", "not an option")) {
		t.Fatalf("InvalidOption should not be fatal")
	}
	if !IsFatal(errors.New("io")) {
		t.Fatalf("unclassified errors are fatal")
	}
}

func TestWarningFrom(t *testing.T) {
	w := WarningFrom("plan_type", New(InvalidOption, "apply", `"XYZ" is not an option`))
	if w.Kind != InvalidOption || w.Subject != "plan_type" {
		t.Fatalf("unexpected warning %+v", w)
	}
	if w.Message != `"XYZ" is not an option` {
		t.Fatalf("message = %q", w.Message)
	}
	if !strings.HasPrefix(w.String(), "InvalidOption: plan_type") {
		t.Fatalf("String() = %q", w.String())
	}
}
