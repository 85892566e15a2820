package history

import (
	"errors"
	"strings"
	"time"
)

// Errors returned by operations and receivers.
var (
	// ErrUnsupportedOperation indicates an operation outside the known set.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrDivisionByZero indicates a Divide with a zero operand.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNotInvertible indicates a command whose inverse cannot be applied.
	ErrNotInvertible = errors.New("operation cannot be undone")
)

// Operation is an arithmetic primitive applied to a Receiver.
// The zero value is not a valid operation.
type Operation uint8

// Supported operations.
const (
	Add Operation = iota + 1
	Subtract
	Multiply
	Divide
)

var inverses = [...]Operation{
	Add:      Subtract,
	Subtract: Add,
	Multiply: Divide,
	Divide:   Multiply,
}

var symbols = [...]string{
	Add:      "+",
	Subtract: "-",
	Multiply: "*",
	Divide:   "/",
}

// Operations returns all supported operations.
func Operations() []Operation {
	return []Operation{Add, Subtract, Multiply, Divide}
}

// Valid reports whether op is one of the supported operations.
func (op Operation) Valid() bool {
	return op >= Add && op <= Divide
}

// Inverse returns the operation that undoes op.
// Invalid operations have no inverse and return the zero Operation.
func (op Operation) Inverse() Operation {
	if !op.Valid() {
		return 0
	}
	return inverses[op]
}

// String returns the operator symbol.
func (op Operation) String() string {
	if !op.Valid() {
		return "?"
	}
	return symbols[op]
}

// Eval computes value <op> operand without side effects.
func (op Operation) Eval(value, operand int64) (int64, error) {
	switch op {
	case Add:
		return value + operand, nil
	case Subtract:
		return value - operand, nil
	case Multiply:
		return value * operand, nil
	case Divide:
		if operand == 0 {
			return value, ErrDivisionByZero
		}
		return value / operand, nil
	default:
		return value, ErrUnsupportedOperation
	}
}

// ParseOperation parses an operator symbol or name.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "add", "plus":
		return Add, nil
	case "-", "sub", "subtract", "minus":
		return Subtract, nil
	case "*", "x", "mul", "multiply", "times":
		return Multiply, nil
	case "/", "div", "divide":
		return Divide, nil
	}
	return 0, ErrUnsupportedOperation
}

// EntryInfo provides read-only info about a history entry.
// Used for displaying and exporting the history.
type EntryInfo struct {
	Index       int       // Position in the log
	Description string    // Human-readable description
	Operation   Operation // Zero for compound entries
	Operand     int64     // Zero for compound entries
	Timestamp   time.Time // When the entry was recorded
	Applied     bool      // False if the entry has been undone
}
