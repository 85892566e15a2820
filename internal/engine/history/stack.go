package history

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEntries is the log size used when none is configured.
const DefaultMaxEntries = 1000

// ErrGroupInProgress is returned by Undo and Redo while a group is open.
var ErrGroupInProgress = errors.New("command group in progress")

// StepKind identifies how a command was applied.
type StepKind int

const (
	// StepExecute is a command applied for the first time.
	StepExecute StepKind = iota
	// StepUndo is a command reversed by Undo.
	StepUndo
	// StepRedo is a command re-applied by Redo.
	StepRedo
)

// String returns the string representation of the step kind.
func (k StepKind) String() string {
	switch k {
	case StepExecute:
		return "execute"
	case StepUndo:
		return "undo"
	case StepRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Step describes one application of a command.
type Step struct {
	Kind        StepKind
	Description string // What was applied; for undo, the inverse
	Value       int64  // Value after the step
}

// Observer is notified of every applied step.
// It is called without the history lock held.
type Observer func(Step)

// entry wraps a command with metadata.
type entry struct {
	command   Command
	timestamp time.Time
}

// History manages the command log and cursor for one Receiver.
//
// Entries in [0, cursor) have been applied, in order, to the receiver.
// Entries in [cursor, len) have been undone and can only be redone.
// All methods are safe for concurrent use.
type History struct {
	mu sync.Mutex

	receiver Receiver
	entries  []*entry
	cursor   int
	dropped  int // entries trimmed from the front, for checkpoints

	// Grouping state
	grouping  bool
	groupName string
	groupCmds []Command

	// Configuration
	maxEntries int
	observer   Observer
}

// Option configures a History.
type Option func(*History)

// WithMaxEntries bounds the number of entries kept in the log.
func WithMaxEntries(max int) Option {
	return func(h *History) {
		if max > 0 {
			h.maxEntries = max
		}
	}
}

// WithObserver sets the step observer.
func WithObserver(obs Observer) Option {
	return func(h *History) {
		h.observer = obs
	}
}

// NewHistory creates a history that owns r.
// A nil receiver is replaced by an accumulator starting at zero.
func NewHistory(r Receiver, opts ...Option) *History {
	if r == nil {
		r = NewAccumulator(0)
	}
	h := &History{
		receiver:   r,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Compute applies op with operand and records it.
// On failure nothing is recorded and the value is unchanged.
func (h *History) Compute(op Operation, operand int64) (int64, error) {
	cmd, err := NewCalcCommand(op, operand)
	if err != nil {
		return 0, err
	}
	return h.Execute(cmd)
}

// Execute runs a command and records it.
// Any undone entries are discarded.
func (h *History) Execute(cmd Command) (int64, error) {
	h.mu.Lock()
	v, err := cmd.Execute(h.receiver)
	if err != nil {
		h.mu.Unlock()
		return 0, err
	}

	if h.grouping {
		h.truncateLocked()
		h.groupCmds = append(h.groupCmds, cmd)
	} else {
		h.pushLocked(cmd)
	}
	obs := h.observer
	h.mu.Unlock()

	notify(obs, Step{Kind: StepExecute, Description: cmd.Description(), Value: v})
	return v, nil
}

// truncateLocked discards undone entries.
func (h *History) truncateLocked() {
	clear(h.entries[h.cursor:])
	h.entries = h.entries[:h.cursor]
}

// pushLocked records an already executed command without acquiring the lock.
func (h *History) pushLocked(cmd Command) {
	h.truncateLocked()
	h.entries = append(h.entries, &entry{
		command:   cmd,
		timestamp: time.Now(),
	})
	h.cursor = len(h.entries)
	h.trimLocked()
}

// trimLocked enforces maxEntries by removing the oldest entries.
func (h *History) trimLocked() {
	if len(h.entries) <= h.maxEntries {
		return
	}
	excess := len(h.entries) - h.maxEntries
	if excess > h.cursor {
		excess = h.cursor
	}
	clear(h.entries[:excess])
	h.entries = h.entries[excess:]
	h.cursor -= excess
	h.dropped += excess
}

// Undo reverses up to levels applied entries, newest first.
// It stops early when nothing is left to undo and returns how many entries
// were undone. Requesting more levels than exist is not an error.
func (h *History) Undo(levels int) (int, error) {
	h.mu.Lock()
	if h.grouping {
		h.mu.Unlock()
		return 0, ErrGroupInProgress
	}
	steps, err := h.undoLocked(levels)
	obs := h.observer
	h.mu.Unlock()

	notify(obs, steps...)
	return len(steps), err
}

func (h *History) undoLocked(levels int) ([]Step, error) {
	var steps []Step
	for i := 0; i < levels && h.cursor > 0; i++ {
		e := h.entries[h.cursor-1]
		v, err := e.command.Undo(h.receiver)
		if err != nil {
			return steps, fmt.Errorf("undo %s: %w", e.command.Description(), err)
		}
		h.cursor--
		steps = append(steps, Step{Kind: StepUndo, Description: undoDescription(e.command), Value: v})
	}
	return steps, nil
}

// Redo re-applies up to levels undone entries, oldest first.
// It stops early when nothing is left to redo and returns how many entries
// were redone.
func (h *History) Redo(levels int) (int, error) {
	h.mu.Lock()
	if h.grouping {
		h.mu.Unlock()
		return 0, ErrGroupInProgress
	}
	steps, err := h.redoLocked(levels)
	obs := h.observer
	h.mu.Unlock()

	notify(obs, steps...)
	return len(steps), err
}

func (h *History) redoLocked(levels int) ([]Step, error) {
	var steps []Step
	for i := 0; i < levels && h.cursor < len(h.entries); i++ {
		e := h.entries[h.cursor]
		v, err := e.command.Execute(h.receiver)
		if err != nil {
			return steps, fmt.Errorf("redo %s: %w", e.command.Description(), err)
		}
		h.cursor++
		steps = append(steps, Step{Kind: StepRedo, Description: e.command.Description(), Value: v})
	}
	return steps, nil
}

func notify(obs Observer, steps ...Step) {
	if obs == nil {
		return
	}
	for _, s := range steps {
		obs(s)
	}
}

// CurrentValue returns the receiver's value.
func (h *History) CurrentValue() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.receiver.Value()
}

// Len returns the number of entries in the log, applied or undone.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Cursor returns the number of applied entries.
func (h *History) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	return h.UndoCount() > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	return h.RedoCount() > 0
}

// UndoCount returns the number of undo operations available.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// RedoCount returns the number of redo operations available.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries) - h.cursor
}

// Clear removes all entries. The current value becomes the new baseline.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropped += h.cursor
	h.entries = nil
	h.cursor = 0
	h.grouping = false
	h.groupCmds = nil
}

// SetObserver replaces the step observer.
func (h *History) SetObserver(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = obs
}

// Entries returns info about every entry in the log.
func (h *History) Entries() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, len(h.entries))
	for i := range h.entries {
		result[i] = h.infoLocked(i)
	}
	return result
}

// UndoInfo returns info about available undo operations, oldest first.
func (h *History) UndoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, h.cursor)
	for i := 0; i < h.cursor; i++ {
		result[i] = h.infoLocked(i)
	}
	return result
}

// RedoInfo returns info about available redo operations, next first.
func (h *History) RedoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, 0, len(h.entries)-h.cursor)
	for i := h.cursor; i < len(h.entries); i++ {
		result = append(result, h.infoLocked(i))
	}
	return result
}

// PeekUndo returns info about the next undo operation without applying it.
func (h *History) PeekUndo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor == 0 {
		return EntryInfo{}, false
	}
	return h.infoLocked(h.cursor - 1), true
}

// PeekRedo returns info about the next redo operation without applying it.
func (h *History) PeekRedo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor == len(h.entries) {
		return EntryInfo{}, false
	}
	return h.infoLocked(h.cursor), true
}

func (h *History) infoLocked(i int) EntryInfo {
	e := h.entries[i]
	info := EntryInfo{
		Index:       i,
		Description: e.command.Description(),
		Timestamp:   e.timestamp,
		Applied:     i < h.cursor,
	}
	if c, ok := e.command.(*CalcCommand); ok {
		info.Operation = c.Operation()
		info.Operand = c.Operand()
	}
	return info
}

// SetMaxEntries changes the maximum number of entries.
// If the log is larger, the oldest applied entries are removed.
func (h *History) SetMaxEntries(max int) {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = max
	h.trimLocked()
}

// MaxEntries returns the maximum number of entries.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}
