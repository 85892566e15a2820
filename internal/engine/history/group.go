package history

import "fmt"

// BeginGroup starts a command group.
// Commands executed while grouping will be combined into a single undo unit.
func (h *History) BeginGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grouping {
		// Already grouping, ignore nested calls
		return
	}

	h.grouping = true
	h.groupName = name
	h.groupCmds = nil
}

// EndGroup finishes a command group.
// All commands since BeginGroup are combined into a CompoundCommand.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.grouping {
		return
	}

	h.grouping = false

	if len(h.groupCmds) == 0 {
		h.groupCmds = nil
		return
	}

	h.pushLocked(NewCompoundCommand(h.groupName, h.groupCmds...))
	h.groupCmds = nil
}

// CancelGroup closes a command group without adding it to the history.
// Commands executed since BeginGroup are undone, newest first.
func (h *History) CancelGroup() error {
	h.mu.Lock()
	if !h.grouping {
		h.mu.Unlock()
		return nil
	}

	h.grouping = false
	steps, err := h.rollbackGroupLocked(0)
	h.groupCmds = nil
	obs := h.observer
	h.mu.Unlock()

	notify(obs, steps...)
	return err
}

// rollbackGroupLocked undoes the open group's commands from index mark
// onwards, newest first, and truncates the group to mark.
func (h *History) rollbackGroupLocked(mark int) ([]Step, error) {
	var steps []Step
	for i := len(h.groupCmds) - 1; i >= mark; i-- {
		cmd := h.groupCmds[i]
		v, err := cmd.Undo(h.receiver)
		if err != nil {
			h.groupCmds = h.groupCmds[:i+1]
			return steps, fmt.Errorf("cancel group '%s': %w", h.groupName, err)
		}
		steps = append(steps, Step{Kind: StepUndo, Description: undoDescription(cmd), Value: v})
	}
	h.groupCmds = h.groupCmds[:mark]
	return steps, nil
}

// IsGrouping returns true if currently in a command group.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grouping
}

// GroupScope provides a convenient way to group commands using defer.
// Usage:
//
//	func applyDiscount(h *History) {
//	    defer h.GroupScope("Discount").End()
//	    h.Compute(Multiply, 9)
//	    h.Compute(Divide, 10)
//	}
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope starts a new group scope.
// Call End() or use with defer to properly close the group.
func (h *History) GroupScope(name string) *GroupScope {
	h.BeginGroup(name)
	return &GroupScope{
		history: h,
		active:  true,
	}
}

// End ends the group scope.
// Safe to call multiple times; only the first call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.history.EndGroup()
		g.active = false
	}
}

// Cancel cancels the group scope and rolls back its commands.
func (g *GroupScope) Cancel() error {
	if !g.active {
		return nil
	}
	g.active = false
	return g.history.CancelGroup()
}

// Transaction executes a function within a grouped undo context.
// If the function returns an error, the group is cancelled and its commands
// rolled back. Otherwise, the group is ended normally.
//
// Inside an already open group, fn joins that group: a failure rolls back
// only the commands fn executed and the outer group stays open.
func (h *History) Transaction(name string, fn func() error) error {
	h.mu.Lock()
	if h.grouping {
		mark := len(h.groupCmds)
		h.mu.Unlock()
		return h.nestedTransaction(mark, fn)
	}
	h.mu.Unlock()

	h.BeginGroup(name)

	if err := fn(); err != nil {
		if cerr := h.CancelGroup(); cerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, cerr)
		}
		return err
	}

	h.EndGroup()
	return nil
}

func (h *History) nestedTransaction(mark int, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	h.mu.Lock()
	var steps []Step
	var rerr error
	if h.grouping && mark <= len(h.groupCmds) {
		steps, rerr = h.rollbackGroupLocked(mark)
	}
	obs := h.observer
	h.mu.Unlock()

	notify(obs, steps...)
	if rerr != nil {
		return fmt.Errorf("%w (rollback: %v)", err, rerr)
	}
	return err
}

// ExecuteGrouped executes multiple commands as a single undo unit.
func (h *History) ExecuteGrouped(name string, cmds ...Command) (int64, error) {
	if len(cmds) == 0 {
		return h.CurrentValue(), nil
	}

	if len(cmds) == 1 {
		// Single command doesn't need grouping
		return h.Execute(cmds[0])
	}

	var v int64
	err := h.Transaction(name, func() error {
		for _, cmd := range cmds {
			var err error
			if v, err = h.Execute(cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Checkpoint represents a point in history that can be returned to.
// Checkpoints are positional: they survive trimming of old entries but
// refer to whatever entry occupies their position after a branch.
type Checkpoint struct {
	position int
}

// CreateCheckpoint creates a checkpoint at the current history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{position: h.dropped + h.cursor}
}

// targetLocked converts a checkpoint to a cursor, clamped to the log.
func (h *History) targetLocked(cp Checkpoint) int {
	target := cp.position - h.dropped
	if target < 0 {
		return 0
	}
	if target > len(h.entries) {
		return len(h.entries)
	}
	return target
}

// UndoToCheckpoint undoes all operations since the checkpoint.
func (h *History) UndoToCheckpoint(cp Checkpoint) error {
	return h.moveTo(cp, true, false)
}

// RedoToCheckpoint redoes operations up to the checkpoint.
// Note: This only works if the entries have not been discarded by a branch.
func (h *History) RedoToCheckpoint(cp Checkpoint) error {
	return h.moveTo(cp, false, true)
}

// MoveToCheckpoint undoes or redoes as needed to reach the checkpoint.
func (h *History) MoveToCheckpoint(cp Checkpoint) error {
	return h.moveTo(cp, true, true)
}

func (h *History) moveTo(cp Checkpoint, back, forward bool) error {
	h.mu.Lock()
	if h.grouping {
		h.mu.Unlock()
		return ErrGroupInProgress
	}

	var steps []Step
	var err error
	target := h.targetLocked(cp)
	switch {
	case back && h.cursor > target:
		steps, err = h.undoLocked(h.cursor - target)
	case forward && h.cursor < target:
		steps, err = h.redoLocked(target - h.cursor)
	}
	obs := h.observer
	h.mu.Unlock()

	notify(obs, steps...)
	return err
}
