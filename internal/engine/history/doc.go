// Package history provides reversible arithmetic with unlimited undo and redo.
//
// The history system uses the Command pattern to encapsulate operations on a
// single numeric value, enabling them to be executed, undone, and redone. Key
// concepts:
//
// # Operations
//
// An Operation is one of a closed set of arithmetic primitives. Each has
// exactly one inverse:
//   - Add and Subtract undo each other
//   - Multiply and Divide undo each other
//
// # Receiver
//
// A Receiver owns the value being operated on. Accumulator is the built-in
// int64 receiver; it is the only thing that mutates the value.
//
// # Commands
//
// Commands implement the Command interface with Execute and Undo methods.
// Built-in commands include:
//   - CalcCommand: One operation with its operand
//   - CompoundCommand: Group multiple commands as one undo unit
//
// # History
//
// The History type keeps an ordered log of commands and a cursor. Entries
// before the cursor are applied; entries at or after it have been undone and
// can be redone:
//
//	h := NewHistory(NewAccumulator(0))
//
//	h.Compute(Add, 100)      // 100
//	h.Compute(Multiply, 10)  // 1000
//
//	h.Undo(2) // 0
//	h.Redo(1) // 100
//
// Computing after an undo discards the undone entries.
//
// # Integer Truncation
//
// Values are int64. Division truncates toward zero and overflow wraps, so
// undoing a Multiply or Divide restores the previous value only when the
// division involved is exact. Multiplying by zero is rejected with
// ErrNotInvertible because its inverse would divide by zero.
//
// # Command Grouping
//
// Multiple computes can be grouped as a single undo unit:
//
//	h.BeginGroup("Apply tax")
//	// ... multiple computes ...
//	h.EndGroup()
package history
