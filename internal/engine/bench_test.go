package engine

import (
	"testing"
)

// ============================================================================
// Setup Helpers
// ============================================================================

func setupLongHistory(b *testing.B, entries int) *Engine {
	b.Helper()
	e := New(WithMaxEntries(entries))
	for i := 0; i < entries; i++ {
		if _, err := e.Compute(Add, int64(i)); err != nil {
			b.Fatal(err)
		}
	}
	return e
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkCompute(b *testing.B) {
	e := New()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = e.Compute(Add, 1)
	}
}

func BenchmarkUndoRedoFull(b *testing.B) {
	e := setupLongHistory(b, 1000)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = e.Undo(1000)
		_, _ = e.Redo(1000)
	}
}

func BenchmarkValue(b *testing.B) {
	e := setupLongHistory(b, 100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = e.Value()
	}
}

func BenchmarkExportJSON(b *testing.B) {
	e := setupLongHistory(b, 100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := e.ExportJSON(); err != nil {
			b.Fatal(err)
		}
	}
}
