// Package app wires configuration, logging, a calculator session and the
// command loop into a runnable application.
package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrUnknownCommand indicates a REPL line that names no command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage indicates a command with missing or malformed arguments.
	ErrUsage = errors.New("usage")

	// ErrNoCheckpoint indicates a restore of a checkpoint that was never taken.
	ErrNoCheckpoint = errors.New("no such checkpoint")

	// ErrScriptingDisabled indicates a lua command without a script runtime.
	ErrScriptingDisabled = errors.New("scripting not available")
)

// CommandError reports a failed REPL command.
type CommandError struct {
	Line    int    // 1-based input line, 0 if unknown
	Command string // Command word (e.g., "undo", "+")
	Err     error  // Underlying error
}

// NewCommandError creates a new CommandError.
func NewCommandError(line int, command string, err error) *CommandError {
	return &CommandError{
		Line:    line,
		Command: command,
		Err:     err,
	}
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Command
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, e.Command)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for CommandError.
// Matches both the wrapper itself and the wrapped error.
func (e *CommandError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*CommandError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// RecoveredPanicError wraps a panic value as an error.
// The stack is kept for logging and is not part of Error().
type RecoveredPanicError struct {
	Value any
	Stack string
}

// NewRecoveredPanicError creates a new RecoveredPanicError.
func NewRecoveredPanicError(value any, stack string) *RecoveredPanicError {
	return &RecoveredPanicError{
		Value: value,
		Stack: stack,
	}
}

func (e *RecoveredPanicError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("panic: %v", e.Value)
}
