package history

import "fmt"

// Receiver owns the value that commands operate on.
type Receiver interface {
	// Apply performs op with operand and returns the new value.
	// On error the value is left unchanged.
	Apply(op Operation, operand int64) (int64, error)

	// Value returns the current value.
	Value() int64
}

// Accumulator is an int64 Receiver.
// It is not safe for concurrent use; History serializes access to it.
type Accumulator struct {
	value int64
}

// NewAccumulator creates an accumulator starting at initial.
func NewAccumulator(initial int64) *Accumulator {
	return &Accumulator{value: initial}
}

// Apply performs op with operand and stores the result.
func (a *Accumulator) Apply(op Operation, operand int64) (int64, error) {
	v, err := op.Eval(a.value, operand)
	if err != nil {
		return a.value, err
	}
	a.value = v
	return v, nil
}

// Value returns the current value.
func (a *Accumulator) Value() int64 {
	return a.value
}

// String implements fmt.Stringer.
func (a *Accumulator) String() string {
	return fmt.Sprintf("%d", a.value)
}

// OperationError records a receiver failure together with the operation
// that caused it.
type OperationError struct {
	Op      Operation
	Operand int64
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Op, e.Operand, e.Err)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}
