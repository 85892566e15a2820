package history

import (
	"fmt"
)

// Command represents a reversible action against a Receiver.
type Command interface {
	// Execute performs the command and returns the resulting value.
	Execute(r Receiver) (int64, error)

	// Undo reverses the command and returns the resulting value.
	Undo(r Receiver) (int64, error)

	// Description returns a human-readable description of the command.
	Description() string
}

// CalcCommand applies one operation with a fixed operand.
// It is immutable once created.
type CalcCommand struct {
	op      Operation
	operand int64
}

// NewCalcCommand creates a command for op with operand.
// Multiplying by zero is rejected because it cannot be undone.
func NewCalcCommand(op Operation, operand int64) (*CalcCommand, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("operation %d: %w", op, ErrUnsupportedOperation)
	}
	if op == Multiply && operand == 0 {
		return nil, &OperationError{Op: op, Operand: operand, Err: ErrNotInvertible}
	}
	return &CalcCommand{op: op, operand: operand}, nil
}

// Operation returns the command's operation.
func (c *CalcCommand) Operation() Operation {
	return c.op
}

// Operand returns the command's operand.
func (c *CalcCommand) Operand() int64 {
	return c.operand
}

// Inverse returns the command that undoes c.
func (c *CalcCommand) Inverse() *CalcCommand {
	return &CalcCommand{op: c.op.Inverse(), operand: c.operand}
}

// Execute applies the operation to r.
func (c *CalcCommand) Execute(r Receiver) (int64, error) {
	return c.apply(r, c.op)
}

// Undo applies the inverse operation to r.
func (c *CalcCommand) Undo(r Receiver) (int64, error) {
	return c.apply(r, c.op.Inverse())
}

func (c *CalcCommand) apply(r Receiver, op Operation) (int64, error) {
	v, err := r.Apply(op, c.operand)
	if err != nil {
		return v, &OperationError{Op: op, Operand: c.operand, Err: err}
	}
	return v, nil
}

// Description returns the operator and operand, e.g. "* 10".
func (c *CalcCommand) Description() string {
	return fmt.Sprintf("%s %d", c.op, c.operand)
}

// UndoDescription describes the inverse, e.g. "/ 10".
func (c *CalcCommand) UndoDescription() string {
	return fmt.Sprintf("%s %d", c.op.Inverse(), c.operand)
}

// CompoundCommand groups multiple commands as one undo unit.
type CompoundCommand struct {
	Name     string
	Commands []Command
}

// NewCompoundCommand creates a new compound command.
func NewCompoundCommand(name string, commands ...Command) *CompoundCommand {
	return &CompoundCommand{
		Name:     name,
		Commands: commands,
	}
}

// Execute runs all commands in order.
func (c *CompoundCommand) Execute(r Receiver) (int64, error) {
	v := r.Value()
	for i, cmd := range c.Commands {
		var err error
		if v, err = cmd.Execute(r); err != nil {
			// On error, try to undo what we've done
			for j := i - 1; j >= 0; j-- {
				_, _ = c.Commands[j].Undo(r)
			}
			return r.Value(), fmt.Errorf("compound command '%s' step %d: %w", c.Name, i, err)
		}
	}
	return v, nil
}

// Undo reverses all commands in reverse order.
func (c *CompoundCommand) Undo(r Receiver) (int64, error) {
	v := r.Value()
	for i := len(c.Commands) - 1; i >= 0; i-- {
		var err error
		if v, err = c.Commands[i].Undo(r); err != nil {
			return v, fmt.Errorf("undo compound command '%s' step %d: %w", c.Name, i, err)
		}
	}
	return v, nil
}

// Description returns the compound command's name.
func (c *CompoundCommand) Description() string {
	if c.Name != "" {
		return c.Name
	}
	if len(c.Commands) == 1 {
		return c.Commands[0].Description()
	}
	return fmt.Sprintf("%d operations", len(c.Commands))
}

// Add adds a command to the compound command.
func (c *CompoundCommand) Add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

// IsEmpty returns true if the compound command has no commands.
func (c *CompoundCommand) IsEmpty() bool {
	return len(c.Commands) == 0
}

// undoDescription describes what undoing cmd does.
func undoDescription(cmd Command) string {
	if u, ok := cmd.(interface{ UndoDescription() string }); ok {
		return u.UndoDescription()
	}
	return "undo " + cmd.Description()
}
