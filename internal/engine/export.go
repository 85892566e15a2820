package engine

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportedEntry is the JSON form of a history entry.
type ExportedEntry struct {
	Index       int       `json:"index"`
	Description string    `json:"description"`
	Op          string    `json:"op,omitempty"`
	Operand     int64     `json:"operand,omitempty"`
	Applied     bool      `json:"applied"`
	Timestamp   time.Time `json:"timestamp"`
}

// Export is the JSON form of a session.
type Export struct {
	Session string          `json:"session"`
	Value   int64           `json:"value"`
	Cursor  int             `json:"cursor"`
	Entries []ExportedEntry `json:"entries"`
}

// Snapshot captures the session's value and history.
// The value, cursor and entries are read separately and may be
// inconsistent if other goroutines mutate the engine concurrently.
func (e *Engine) Snapshot() Export {
	infos := e.history.Entries()
	out := Export{
		Session: e.id.String(),
		Value:   e.history.CurrentValue(),
		Cursor:  e.history.Cursor(),
		Entries: make([]ExportedEntry, len(infos)),
	}
	for i, info := range infos {
		ee := ExportedEntry{
			Index:       info.Index,
			Description: info.Description,
			Applied:     info.Applied,
			Timestamp:   info.Timestamp,
		}
		if info.Operation.Valid() {
			ee.Op = info.Operation.String()
			ee.Operand = info.Operand
		}
		out.Entries[i] = ee
	}
	return out
}

// ExportJSON returns the session snapshot as indented JSON.
func (e *Engine) ExportJSON() ([]byte, error) {
	data, err := jsonCodec.MarshalIndent(e.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export session %s: %w", e.id, err)
	}
	return data, nil
}
