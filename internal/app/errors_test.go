package app

import (
	"errors"
	"testing"
)

func TestCommandError(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{"with line", NewCommandError(3, "undo", base), "line 3: undo: boom"},
		{"without line", NewCommandError(0, "undo", base), "undo: boom"},
		{"without error", NewCommandError(2, "value", nil), "line 2: value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	err := NewCommandError(1, "+", base)
	if !errors.Is(err, base) {
		t.Error("CommandError should match wrapped error")
	}
	if !errors.Is(err, err) {
		t.Error("CommandError should match itself")
	}
	if errors.Is(err, NewCommandError(1, "+", base)) {
		t.Error("distinct CommandErrors should not match")
	}

	var nilErr *CommandError
	if nilErr.Error() != "" || nilErr.Unwrap() != nil || nilErr.Is(base) {
		t.Error("nil CommandError should be inert")
	}
}

func TestInitError(t *testing.T) {
	base := errors.New("bad file")
	err := &InitError{Component: "config", Err: base}

	if err.Error() != "init config: bad file" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("InitError should unwrap")
	}
}

func TestRecoveredPanicError(t *testing.T) {
	if got := NewRecoveredPanicError("oops", "").Error(); got != "panic: oops" {
		t.Errorf("Error() = %q", got)
	}
	err := NewRecoveredPanicError("oops", "goroutine 1 [running]:")
	if got := err.Error(); got != "panic: oops" {
		t.Errorf("Error() = %q, stack should not be included", got)
	}
	if err.Stack == "" {
		t.Error("Stack should be retained")
	}
}
