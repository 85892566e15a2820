package script

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tally/internal/engine"
)

const checkpointTypeName = "tally.checkpoint"

// maxExactNumber is the largest magnitude a Lua number holds exactly.
const maxExactNumber = 1 << 53

// pushValue pushes v as a number, or as a decimal string when a float64
// would round it.
func pushValue(L *lua.LState, v int64) {
	if v > maxExactNumber || v < -maxExactNumber {
		L.Push(lua.LString(strconv.FormatInt(v, 10)))
		return
	}
	L.Push(lua.LNumber(v))
}

// checkOperand reads argument n as an integer. Decimal strings are
// accepted so that operands beyond 2^53 can be passed exactly.
func checkOperand(L *lua.LState, n int) int64 {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return int64(v)
	case lua.LString:
		i, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			L.ArgError(n, "integer expected, got "+strconv.Quote(string(v)))
			return 0
		}
		return i
	default:
		L.TypeError(n, lua.LTNumber)
		return 0
	}
}

// registerTally installs the tally global table.
func (s *State) registerTally() {
	L := s.L

	mt := L.NewTypeMetatable(checkpointTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkpointTypeName))
		return 1
	}))

	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"compute":    s.luaCompute,
		"add":        s.binary(engine.Add),
		"sub":        s.binary(engine.Subtract),
		"mul":        s.binary(engine.Multiply),
		"div":        s.binary(engine.Divide),
		"undo":       s.luaUndo,
		"redo":       s.luaRedo,
		"value":      s.luaValue,
		"len":        s.luaLen,
		"cursor":     s.luaCursor,
		"checkpoint": s.luaCheckpoint,
		"restore":    s.luaRestore,
		"group":      s.luaGroup,
		"history":    s.luaHistory,
	})
	L.SetGlobal("tally", mod)
}

// luaCompute: tally.compute(op, n) -> value
func (s *State) luaCompute(L *lua.LState) int {
	s.charge(L)
	sym := L.CheckString(1)
	operand := checkOperand(L, 2)

	v, err := s.engine.ComputeSymbol(sym, operand)
	if err != nil {
		L.RaiseError("compute %s %d: %s", sym, operand, err.Error())
		return 0
	}
	pushValue(L, v)
	return 1
}

// binary returns a function applying op to its single argument.
func (s *State) binary(op engine.Operation) lua.LGFunction {
	return func(L *lua.LState) int {
		s.charge(L)
		operand := checkOperand(L, 1)

		v, err := s.engine.Compute(op, operand)
		if err != nil {
			L.RaiseError("%s %d: %s", op, operand, err.Error())
			return 0
		}
		pushValue(L, v)
		return 1
	}
}

// luaUndo: tally.undo([n]) -> count
func (s *State) luaUndo(L *lua.LState) int {
	s.charge(L)
	n, err := s.engine.Undo(L.OptInt(1, 1))
	if err != nil {
		L.RaiseError("undo: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// luaRedo: tally.redo([n]) -> count
func (s *State) luaRedo(L *lua.LState) int {
	s.charge(L)
	n, err := s.engine.Redo(L.OptInt(1, 1))
	if err != nil {
		L.RaiseError("redo: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (s *State) luaValue(L *lua.LState) int {
	s.charge(L)
	pushValue(L, s.engine.Value())
	return 1
}

func (s *State) luaLen(L *lua.LState) int {
	s.charge(L)
	L.Push(lua.LNumber(s.engine.Len()))
	return 1
}

func (s *State) luaCursor(L *lua.LState) int {
	s.charge(L)
	L.Push(lua.LNumber(s.engine.Cursor()))
	return 1
}

// luaCheckpoint: tally.checkpoint() -> userdata
func (s *State) luaCheckpoint(L *lua.LState) int {
	s.charge(L)
	ud := L.NewUserData()
	ud.Value = s.engine.Checkpoint()
	L.SetMetatable(ud, L.GetTypeMetatable(checkpointTypeName))
	L.Push(ud)
	return 1
}

// luaRestore: tally.restore(cp) -> value
func (s *State) luaRestore(L *lua.LState) int {
	s.charge(L)
	ud := L.CheckUserData(1)
	cp, ok := ud.Value.(engine.Checkpoint)
	if !ok {
		L.ArgError(1, "checkpoint expected")
		return 0
	}
	if err := s.engine.RestoreCheckpoint(cp); err != nil {
		L.RaiseError("restore: %s", err.Error())
		return 0
	}
	pushValue(L, s.engine.Value())
	return 1
}

// luaGroup: tally.group(name, fn) -> value
// Computes made by fn are undone as one unit. If fn raises, they are
// rolled back and the error is re-raised. Inside an open group fn joins it.
func (s *State) luaGroup(L *lua.LState) int {
	s.charge(L)
	name := L.CheckString(1)
	fn := L.CheckFunction(2)

	err := s.engine.Group(name, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
	if err != nil {
		L.RaiseError("group %s: %s", name, err.Error())
		return 0
	}
	pushValue(L, s.engine.Value())
	return 1
}

// luaHistory: tally.history() -> {{description=, applied=}, ...}
func (s *State) luaHistory(L *lua.LState) int {
	s.charge(L)
	entries := s.engine.Entries()
	tbl := L.CreateTable(len(entries), 0)
	for _, info := range entries {
		row := L.CreateTable(0, 2)
		row.RawSetString("description", lua.LString(info.Description))
		row.RawSetString("applied", lua.LBool(info.Applied))
		tbl.Append(row)
	}
	L.Push(tbl)
	return 1
}
