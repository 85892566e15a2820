// Package engine provides the calculator session for Tally.
//
// The engine package serves as the main facade, combining the value, its
// undo/redo history, logging and change notification into a unified,
// thread-safe API.
//
// # Architecture
//
// The engine is built on the history sub-package:
//
//   - history: Command-based undo/redo over an int64 accumulator
//
// # Basic Usage
//
//	e := engine.New()
//	defer e.Close()
//
//	e.Compute(engine.Add, 100)      // 100
//	e.Compute(engine.Subtract, 50)  // 50
//	e.Compute(engine.Multiply, 10)  // 500
//	e.Compute(engine.Divide, 2)     // 250
//
//	e.Undo(4) // 0
//	e.Redo(3) // 500
//
// # Observing Changes
//
// Every applied command, including each step of a multi-level undo, is
// delivered to subscribers:
//
//	unsubscribe := e.Subscribe(func(c engine.Change) {
//	    fmt.Println(c.Kind, c.Description, c.Value)
//	})
//	defer unsubscribe()
//
// # Configuration
//
//	e := engine.New(
//	    engine.WithInitialValue(10),
//	    engine.WithMaxEntries(500),
//	    engine.WithLogger(logger),
//	)
//
// # Error Handling
//
//   - ErrDivisionByZero: Divide by zero; nothing recorded
//   - ErrUnsupportedOperation: Unknown operation; nothing recorded
//   - ErrNotInvertible: Multiply by zero; nothing recorded
//   - ErrGroupInProgress: Undo or redo while a group is open
//   - ErrReadOnly: Write operation on read-only engine
//   - ErrClosed: Write operation after Close
package engine
