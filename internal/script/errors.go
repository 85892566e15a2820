package script

import "errors"

var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrInstructionLimit is returned when a run exceeds its call budget.
	ErrInstructionLimit = errors.New("lua instruction limit exceeded")

	// ErrNoEngine is returned by NewState when no engine is given.
	ErrNoEngine = errors.New("no engine")
)
