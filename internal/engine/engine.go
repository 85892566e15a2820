package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/tally/internal/engine/history"
)

// Re-export commonly used types for convenience.
type (
	// Operation is an arithmetic primitive.
	Operation = history.Operation

	// Command is an undoable command.
	Command = history.Command

	// Checkpoint marks a position in the history.
	Checkpoint = history.Checkpoint

	// EntryInfo describes a history entry.
	EntryInfo = history.EntryInfo

	// StepKind identifies how a command was applied.
	StepKind = history.StepKind
)

// Re-export constants.
const (
	Add      = history.Add
	Subtract = history.Subtract
	Multiply = history.Multiply
	Divide   = history.Divide

	StepExecute = history.StepExecute
	StepUndo    = history.StepUndo
	StepRedo    = history.StepRedo
)

// ParseOperation parses an operator symbol or name such as "+" or "mul".
func ParseOperation(s string) (Operation, error) {
	return history.ParseOperation(s)
}

// Change is delivered to observers for every applied command.
type Change struct {
	Session     uuid.UUID
	Kind        StepKind
	Description string
	Value       int64
}

// Observer receives changes.
type Observer func(Change)

type subscription struct {
	id int
	fn Observer
}

// Engine is a calculator session: one value, its history, and the
// observers watching it. Sessions are created with New and released
// with Close; there is no shared default session.
//
// All operations are thread-safe and can be called from multiple goroutines.
type Engine struct {
	mu sync.RWMutex

	// ops is held shared by mutations for their whole duration and
	// exclusively by Close. Observers run under it and must not call Close.
	ops sync.RWMutex

	id      uuid.UUID
	created time.Time
	history *history.History
	logger  Logger

	observers []subscription
	subSeq    int

	// Configuration
	initial    int64
	maxEntries int
	readOnly   bool

	closed bool
}

// New creates a new engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		id:         uuid.New(),
		created:    time.Now(),
		maxEntries: DefaultMaxEntries,
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(e)
	}

	if l, ok := e.logger.(*slog.Logger); ok {
		e.logger = l.With("component", "engine", "session", e.id.String())
	}

	e.history = history.NewHistory(
		history.NewAccumulator(e.initial),
		history.WithMaxEntries(e.maxEntries),
		history.WithObserver(e.dispatch),
	)

	e.logger.Debug("session created", "initial", e.initial, "max_entries", e.maxEntries, "read_only", e.readOnly)
	return e
}

// ID returns the session identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Created returns when the session was created.
func (e *Engine) Created() time.Time {
	return e.created
}

// beginWrite holds ops shared until the returned release is called.
// It fails if the engine cannot be mutated.
func (e *Engine) beginWrite() (release func(), err error) {
	e.ops.RLock()
	if err := e.checkWritable(); err != nil {
		e.ops.RUnlock()
		return nil, err
	}
	return e.ops.RUnlock, nil
}

// checkWritable returns an error if the engine cannot be mutated.
func (e *Engine) checkWritable() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrClosed
	}
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}

// ============================================================================
// Compute / Undo / Redo
// ============================================================================

// Compute applies op with operand and returns the new value.
func (e *Engine) Compute(op Operation, operand int64) (int64, error) {
	release, err := e.beginWrite()
	if err != nil {
		return 0, err
	}
	defer release()

	v, err := e.history.Compute(op, operand)
	if err != nil {
		e.logger.Warn("compute rejected", "op", op.String(), "operand", operand, "error", err)
		return 0, err
	}

	e.logger.Debug("compute", "op", op.String(), "operand", operand, "value", v)
	return v, nil
}

// ComputeSymbol parses sym as an operation and applies it.
func (e *Engine) ComputeSymbol(sym string, operand int64) (int64, error) {
	op, err := history.ParseOperation(sym)
	if err != nil {
		e.logger.Warn("compute rejected", "op", sym, "operand", operand, "error", err)
		return 0, err
	}
	return e.Compute(op, operand)
}

// Execute runs a command and adds it to the history.
func (e *Engine) Execute(cmd Command) (int64, error) {
	release, err := e.beginWrite()
	if err != nil {
		return 0, err
	}
	defer release()
	return e.history.Execute(cmd)
}

// Undo undoes up to levels operations and returns how many were undone.
func (e *Engine) Undo(levels int) (int, error) {
	release, err := e.beginWrite()
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := e.history.Undo(levels)
	if err != nil {
		e.logger.Error("undo failed", "requested", levels, "undone", n, "error", err)
		return n, err
	}

	e.logger.Debug("undo", "requested", levels, "undone", n)
	return n, nil
}

// Redo redoes up to levels operations and returns how many were redone.
func (e *Engine) Redo(levels int) (int, error) {
	release, err := e.beginWrite()
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := e.history.Redo(levels)
	if err != nil {
		e.logger.Error("redo failed", "requested", levels, "redone", n, "error", err)
		return n, err
	}

	e.logger.Debug("redo", "requested", levels, "redone", n)
	return n, nil
}

// Value returns the current value.
func (e *Engine) Value() int64 {
	return e.history.CurrentValue()
}

// CanUndo returns true if undo is available.
func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

// CanRedo returns true if redo is available.
func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

// UndoCount returns the number of available undo operations.
func (e *Engine) UndoCount() int {
	return e.history.UndoCount()
}

// RedoCount returns the number of available redo operations.
func (e *Engine) RedoCount() int {
	return e.history.RedoCount()
}

// Len returns the number of history entries.
func (e *Engine) Len() int {
	return e.history.Len()
}

// Cursor returns the history cursor.
func (e *Engine) Cursor() int {
	return e.history.Cursor()
}

// Entries returns info about every history entry.
func (e *Engine) Entries() []EntryInfo {
	return e.history.Entries()
}

// History is an alias for Entries.
func (e *Engine) History() []EntryInfo {
	return e.history.Entries()
}

// SetMaxEntries changes the history bound, dropping the oldest entries
// if the history is now too long. Values <= 0 select DefaultMaxEntries.
func (e *Engine) SetMaxEntries(n int) {
	e.history.SetMaxEntries(n)
	e.logger.Info("max entries changed", "max_entries", e.history.MaxEntries())
}

// MaxEntries returns the history bound.
func (e *Engine) MaxEntries() int {
	return e.history.MaxEntries()
}

// ClearHistory removes all undo/redo history. The value is kept.
func (e *Engine) ClearHistory() error {
	release, err := e.beginWrite()
	if err != nil {
		return err
	}
	defer release()
	e.history.Clear()
	e.logger.Info("history cleared", "value", e.history.CurrentValue())
	return nil
}

// ============================================================================
// Grouping and Checkpoints
// ============================================================================

// BeginGroup starts a new undo group.
// All computes until EndGroup will be undone as a single unit.
func (e *Engine) BeginGroup(name string) error {
	release, err := e.beginWrite()
	if err != nil {
		return err
	}
	defer release()
	e.history.BeginGroup(name)
	return nil
}

// EndGroup ends the current undo group.
func (e *Engine) EndGroup() {
	e.history.EndGroup()
}

// CancelGroup cancels the current undo group and rolls it back.
func (e *Engine) CancelGroup() error {
	return e.history.CancelGroup()
}

// IsGrouping returns true while a group is open.
func (e *Engine) IsGrouping() bool {
	return e.history.IsGrouping()
}

// Group runs fn as a single undo unit. If fn fails the group is rolled back.
// Inside an open group fn joins it and only fn's own computes are rolled back.
// Computes made by fn check for Close individually.
func (e *Engine) Group(name string, fn func() error) error {
	if err := e.checkWritable(); err != nil {
		return err
	}
	if err := e.history.Transaction(name, fn); err != nil {
		e.logger.Warn("group rolled back", "group", name, "error", err)
		return err
	}
	return nil
}

// Checkpoint records the current history position.
func (e *Engine) Checkpoint() Checkpoint {
	return e.history.CreateCheckpoint()
}

// RestoreCheckpoint undoes or redoes until the checkpoint is reached.
func (e *Engine) RestoreCheckpoint(cp Checkpoint) error {
	release, err := e.beginWrite()
	if err != nil {
		return err
	}
	defer release()
	return e.history.MoveToCheckpoint(cp)
}

// ============================================================================
// Observers
// ============================================================================

// Subscribe registers obs for every applied step and returns a function
// that removes it.
func (e *Engine) Subscribe(obs Observer) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID()
	e.observers = append(e.observers, subscription{id: id, fn: obs})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.observers {
			if s.id == id {
				e.observers = append(e.observers[:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

// nextSubID must be called with the lock held or during construction.
func (e *Engine) nextSubID() int {
	e.subSeq++
	return e.subSeq
}

// dispatch fans a history step out to all observers.
func (e *Engine) dispatch(s history.Step) {
	e.mu.RLock()
	subs := make([]subscription, len(e.observers))
	copy(subs, e.observers)
	e.mu.RUnlock()

	c := Change{
		Session:     e.id,
		Kind:        s.Kind,
		Description: s.Description,
		Value:       s.Value,
	}
	for _, sub := range subs {
		sub.fn(c)
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// IsReadOnly returns true if the engine is read-only.
func (e *Engine) IsReadOnly() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.readOnly
}

// IsClosed returns true after Close.
func (e *Engine) IsClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Close releases the session. Further mutations return ErrClosed.
// Closing twice is a no-op.
func (e *Engine) Close() error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.observers = nil
	e.mu.Unlock()

	e.history.Clear()
	e.logger.Debug("session closed", "value", e.history.CurrentValue())
	return nil
}
