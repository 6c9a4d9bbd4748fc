package workshop

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorfMessage(t *testing.T) {
	err := Errorf(KindInvalidInput, "bad path: %s", "../x")
	if err.Kind != KindInvalidInput {
		t.Errorf("Kind = %q", err.Kind)
	}
	if err.Error() != "bad path: ../x" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrapErrorChain(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(KindIO, cause, "write file")

	if err.Error() != "write file: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"direct", Errorf(KindEscape, "out"), KindEscape},
		{"wrapped in fmt", fmt.Errorf("outer: %w", Errorf(KindNotFound, "gone")), KindNotFound},
		{"double wrap", WrapError(KindProvider, Errorf(KindBusy, "later"), "call"), KindProvider},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline", context.DeadlineExceeded, KindCancelled},
		{"wrapped cancel", fmt.Errorf("turn: %w", context.Canceled), KindCancelled},
		{"plain", errors.New("anything"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorWithoutMessage(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Kind: KindIO, Err: cause}
	if err.Error() != "root cause" {
		t.Errorf("Error() = %q, want cause only", err.Error())
	}
}
