package engine

import (
	"errors"

	"github.com/dshills/tally/internal/engine/history"
)

// Errors returned by engine operations.
var (
	// ErrReadOnly indicates an operation was attempted on a read-only engine.
	ErrReadOnly = errors.New("engine is read-only")

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("engine is closed")

	// ErrDivisionByZero indicates a divide by zero.
	ErrDivisionByZero = history.ErrDivisionByZero

	// ErrUnsupportedOperation indicates an unknown operation.
	ErrUnsupportedOperation = history.ErrUnsupportedOperation

	// ErrNotInvertible indicates an operation that could not be undone.
	ErrNotInvertible = history.ErrNotInvertible

	// ErrGroupInProgress indicates undo or redo while a group is open.
	ErrGroupInProgress = history.ErrGroupInProgress
)
