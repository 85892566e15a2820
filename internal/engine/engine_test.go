package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/tally/internal/engine/history"
)

// ============================================================================
// Basic Operations
// ============================================================================

func TestNew(t *testing.T) {
	e := New()
	defer e.Close()

	if e.Value() != 0 {
		t.Errorf("expected zero value, got %d", e.Value())
	}
	if e.Len() != 0 {
		t.Errorf("expected empty history, got len %d", e.Len())
	}
	if e.ID().String() == "" {
		t.Error("expected a session id")
	}
	if e.Created().IsZero() {
		t.Error("expected creation time")
	}
}

func TestNewSessionsAreIndependent(t *testing.T) {
	a := New()
	b := New()

	if a.ID() == b.ID() {
		t.Error("sessions share an id")
	}

	a.Compute(Add, 10)
	if b.Value() != 0 {
		t.Errorf("second session value = %d, want 0", b.Value())
	}
}

func TestNewWithOptions(t *testing.T) {
	e := New(WithInitialValue(7), WithMaxEntries(2))

	for i := 0; i < 4; i++ {
		if _, err := e.Compute(Add, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if e.Value() != 11 {
		t.Errorf("expected 11, got %d", e.Value())
	}
	if e.UndoCount() != 2 {
		t.Errorf("expected 2 undo entries, got %d", e.UndoCount())
	}
}

func TestReferenceSequence(t *testing.T) {
	var values []int64
	e := New(WithObserver(func(c Change) {
		values = append(values, c.Value)
	}))

	steps := []struct {
		sym     string
		operand int64
		want    int64
	}{
		{"+", 100, 100},
		{"-", 50, 50},
		{"*", 10, 500},
		{"/", 2, 250},
	}
	for _, s := range steps {
		got, err := e.ComputeSymbol(s.sym, s.operand)
		if err != nil {
			t.Fatalf("ComputeSymbol(%q, %d) error: %v", s.sym, s.operand, err)
		}
		if got != s.want {
			t.Errorf("ComputeSymbol(%q, %d) = %d, want %d", s.sym, s.operand, got, s.want)
		}
	}

	values = nil
	if n, err := e.Undo(4); err != nil || n != 4 {
		t.Fatalf("Undo(4) = %d, %v", n, err)
	}
	if got := values; !equalInts(got, []int64{500, 50, 100, 0}) {
		t.Errorf("undo values = %v", got)
	}

	values = nil
	if n, err := e.Redo(3); err != nil || n != 3 {
		t.Fatalf("Redo(3) = %d, %v", n, err)
	}
	if got := values; !equalInts(got, []int64{100, 50, 500}) {
		t.Errorf("redo values = %v", got)
	}
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================================
// Errors
// ============================================================================

func TestComputeErrors(t *testing.T) {
	e := New()
	e.Compute(Add, 3)

	if _, err := e.Compute(Divide, 0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := e.ComputeSymbol("%", 2); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
	if _, err := e.Compute(Multiply, 0); !errors.Is(err, ErrNotInvertible) {
		t.Errorf("expected ErrNotInvertible, got %v", err)
	}

	if e.Value() != 3 || e.Len() != 1 {
		t.Errorf("state changed: value=%d len=%d", e.Value(), e.Len())
	}
}

func TestReadOnly(t *testing.T) {
	e := New(WithReadOnly(), WithInitialValue(5))

	if !e.IsReadOnly() {
		t.Error("expected read-only engine")
	}
	if _, err := e.Compute(Add, 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if _, err := e.Undo(1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if _, err := e.Redo(1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if e.Value() != 5 {
		t.Errorf("expected 5, got %d", e.Value())
	}
}

func TestClose(t *testing.T) {
	e := New()
	e.Compute(Add, 1)

	if err := e.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if !e.IsClosed() {
		t.Error("expected closed engine")
	}
	if _, err := e.Compute(Add, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if e.Value() != 1 {
		t.Errorf("expected value to remain readable, got %d", e.Value())
	}
}

// ============================================================================
// Grouping and Checkpoints
// ============================================================================

func TestGroup(t *testing.T) {
	e := New()

	err := e.Group("double plus one", func() error {
		if _, err := e.Compute(Add, 4); err != nil {
			return err
		}
		_, err := e.Compute(Multiply, 2)
		return err
	})
	if err != nil {
		t.Fatalf("Group error: %v", err)
	}
	if e.Value() != 8 || e.UndoCount() != 1 {
		t.Errorf("value=%d undo=%d, want 8/1", e.Value(), e.UndoCount())
	}

	err = e.Group("fails", func() error {
		if _, err := e.Compute(Add, 4); err != nil {
			return err
		}
		_, err := e.Compute(Divide, 0)
		return err
	})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if e.Value() != 8 || e.UndoCount() != 1 {
		t.Errorf("value=%d undo=%d after rollback, want 8/1", e.Value(), e.UndoCount())
	}
}

func TestBeginEndGroup(t *testing.T) {
	e := New()
	if err := e.BeginGroup("g"); err != nil {
		t.Fatalf("BeginGroup error: %v", err)
	}
	if !e.IsGrouping() {
		t.Error("expected grouping")
	}
	e.Compute(Add, 1)
	e.Compute(Add, 1)
	if _, err := e.Undo(1); !errors.Is(err, ErrGroupInProgress) {
		t.Errorf("expected ErrGroupInProgress, got %v", err)
	}
	e.EndGroup()

	if e.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", e.Len())
	}
	e.Undo(1)
	if e.Value() != 0 {
		t.Errorf("expected 0, got %d", e.Value())
	}

	e.BeginGroup("cancelled")
	e.Compute(Add, 9)
	if err := e.CancelGroup(); err != nil {
		t.Fatalf("CancelGroup error: %v", err)
	}
	if e.Value() != 0 {
		t.Errorf("expected 0 after cancel, got %d", e.Value())
	}
}

func TestGroupInsideOpenGroup(t *testing.T) {
	e := New()
	e.BeginGroup("outer")
	e.Compute(Add, 1)

	err := e.Group("inner", func() error {
		if _, err := e.Compute(Add, 2); err != nil {
			return err
		}
		_, err := e.Compute(Divide, 0)
		return err
	})
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if e.Value() != 1 {
		t.Errorf("expected 1 after inner rollback, got %d", e.Value())
	}
	if !e.IsGrouping() {
		t.Fatal("outer group closed by inner group")
	}

	e.EndGroup()
	if e.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", e.Len())
	}
}

func TestCheckpoint(t *testing.T) {
	e := New()
	e.Compute(Add, 2)
	cp := e.Checkpoint()
	e.Compute(Multiply, 5)
	e.Compute(Subtract, 1)

	if err := e.RestoreCheckpoint(cp); err != nil {
		t.Fatalf("RestoreCheckpoint error: %v", err)
	}
	if e.Value() != 2 {
		t.Errorf("expected 2, got %d", e.Value())
	}
	if e.RedoCount() != 2 {
		t.Errorf("expected 2 redo entries, got %d", e.RedoCount())
	}
}

func TestSetMaxEntries(t *testing.T) {
	e := New()
	for i := 0; i < 5; i++ {
		e.Compute(Add, 1)
	}

	e.SetMaxEntries(2)
	if e.MaxEntries() != 2 {
		t.Errorf("expected 2, got %d", e.MaxEntries())
	}
	if e.Len() != 2 || e.Value() != 5 {
		t.Errorf("len=%d value=%d, want 2/5", e.Len(), e.Value())
	}

	e.SetMaxEntries(0)
	if e.MaxEntries() != DefaultMaxEntries {
		t.Errorf("expected default, got %d", e.MaxEntries())
	}
}

func TestClearHistory(t *testing.T) {
	e := New()
	e.Compute(Add, 2)
	if err := e.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory error: %v", err)
	}
	if e.CanUndo() || e.CanRedo() {
		t.Error("expected empty history")
	}
	if e.Value() != 2 {
		t.Errorf("expected 2, got %d", e.Value())
	}
}

func TestExecuteCommand(t *testing.T) {
	e := New()
	add, _ := history.NewCalcCommand(Add, 3)
	mul, _ := history.NewCalcCommand(Multiply, 3)

	v, err := e.Execute(history.NewCompoundCommand("triple after three", add, mul))
	if err != nil {
		t.Fatalf("Execute error: %v", err)
	}
	if v != 9 {
		t.Errorf("expected 9, got %d", v)
	}
}

// ============================================================================
// Observers
// ============================================================================

func TestSubscribe(t *testing.T) {
	e := New()

	var got []Change
	unsubscribe := e.Subscribe(func(c Change) {
		got = append(got, c)
	})

	e.Compute(Add, 1)
	e.Undo(1)
	unsubscribe()
	e.Redo(1)

	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if got[0].Kind != StepExecute || got[1].Kind != StepUndo {
		t.Errorf("unexpected kinds %v, %v", got[0].Kind, got[1].Kind)
	}
	if got[0].Session != e.ID() {
		t.Error("change carries wrong session id")
	}
	if got[1].Description != "- 1" {
		t.Errorf("undo description = %q", got[1].Description)
	}
}

func TestConcurrentCompute(t *testing.T) {
	e := New(WithMaxEntries(10000))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Compute(Add, 1)
			}
		}()
	}
	wg.Wait()

	if e.Value() != 1000 {
		t.Errorf("expected 1000, got %d", e.Value())
	}
	if e.Len() != 1000 {
		t.Errorf("expected 1000 entries, got %d", e.Len())
	}
}

func TestComputeRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		e := New(WithMaxEntries(100000))

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for {
					if _, err := e.Compute(Add, 1); err != nil {
						if !errors.Is(err, ErrClosed) {
							t.Errorf("expected ErrClosed, got %v", err)
						}
						return
					}
				}
			}()
		}

		close(start)
		e.Close()
		wg.Wait()

		if e.Len() != 0 {
			t.Fatalf("round %d: %d entries recorded after Close", round, e.Len())
		}
	}
}

// ============================================================================
// Logging and Export
// ============================================================================

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := New(WithLogger(logger))

	e.Compute(Add, 5)
	e.Compute(Divide, 0)

	out := buf.String()
	if !strings.Contains(out, "session="+e.ID().String()) {
		t.Errorf("log missing session attribute: %s", out)
	}
	if !strings.Contains(out, "compute rejected") {
		t.Errorf("log missing rejected compute: %s", out)
	}
}

func TestWithNilLogger(t *testing.T) {
	e := New(WithLogger(nil))
	if _, err := e.Compute(Add, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	e := New()
	e.Compute(Add, 100)
	e.Group("halve twice", func() error {
		e.Compute(Divide, 2)
		e.Compute(Divide, 2)
		return nil
	})
	e.Undo(1)

	data, err := e.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON error: %v", err)
	}

	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if doc.Session != e.ID().String() {
		t.Errorf("session = %q", doc.Session)
	}
	if doc.Value != 100 || doc.Cursor != 1 || len(doc.Entries) != 2 {
		t.Fatalf("unexpected export: %+v", doc)
	}
	if doc.Entries[0].Op != "+" || doc.Entries[0].Operand != 100 || !doc.Entries[0].Applied {
		t.Errorf("entry 0 = %+v", doc.Entries[0])
	}
	if doc.Entries[1].Op != "" || doc.Entries[1].Description != "halve twice" || doc.Entries[1].Applied {
		t.Errorf("entry 1 = %+v", doc.Entries[1])
	}
}
