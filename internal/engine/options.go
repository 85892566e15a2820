package engine

import (
	"log/slog"

	"github.com/dshills/tally/internal/engine/history"
)

// Default configuration values.
const (
	DefaultMaxEntries = history.DefaultMaxEntries
)

// Logger is the logging interface used by the engine.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures an Engine during creation.
type Option func(*Engine)

// WithInitialValue sets the starting value.
func WithInitialValue(v int64) Option {
	return func(e *Engine) {
		e.initial = v
	}
}

// WithMaxEntries sets the maximum number of history entries.
func WithMaxEntries(max int) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxEntries = max
		}
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l == nil {
			l = slog.New(slog.DiscardHandler)
		}
		e.logger = l
	}
}

// WithObserver subscribes obs to every applied step.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		if obs != nil {
			e.observers = append(e.observers, subscription{id: e.nextSubID(), fn: obs})
		}
	}
}

// WithReadOnly creates a read-only engine.
// Compute, Undo and Redo will return ErrReadOnly.
func WithReadOnly() Option {
	return func(e *Engine) {
		e.readOnly = true
	}
}
