// Package script runs Lua scripts against a calculator session.
//
// Scripts see a single global table, tally, bound to an engine.Engine:
//
//	tally.add(100)
//	tally.sub(50)
//	local cp = tally.checkpoint()
//	tally.mul(10)
//	tally.undo(2)
//	tally.restore(cp)
//	print(tally.value())
//
// Lua numbers are float64. Values with a magnitude above 2^53 are
// returned as decimal strings, and operands may be given as decimal
// strings to pass such values exactly.
//
// The Lua state is sandboxed. Only the base, table, string and math
// libraries are opened, and dofile, loadfile, load and loadstring are
// removed. Each run is bounded by a context and by a limit on the number
// of calls made into the tally table.
package script
