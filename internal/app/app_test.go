package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/tally/internal/config"
	"github.com/dshills/tally/internal/engine"
)

// testOptions returns options isolated from the user's config file.
func testOptions(t *testing.T, input string) (Options, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, logs bytes.Buffer
	return Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		Input:      strings.NewReader(input),
		Output:     &out,
		LogOutput:  &logs,
	}, &out, &logs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	if app.Config().Engine.MaxEntries != config.DefaultMaxEntries {
		t.Errorf("max entries = %d", app.Config().Engine.MaxEntries)
	}
	if app.Engine() == nil || app.Logger() == nil {
		t.Fatal("expected engine and logger")
	}
	if app.Engine().Value() != 0 {
		t.Errorf("expected 0, got %d", app.Engine().Value())
	}
}

func TestNewFromConfigFile(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	opts.ConfigPath = writeConfig(t, `
[engine]
initial_value = 40
max_entries = 3
`)

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	if app.Engine().Value() != 40 {
		t.Errorf("expected 40, got %d", app.Engine().Value())
	}
	if app.Config().Engine.MaxEntries != 3 {
		t.Errorf("max entries = %d", app.Config().Engine.MaxEntries)
	}
}

func TestOptionsOverrideConfig(t *testing.T) {
	opts, _, logs := testOptions(t, "")
	opts.ConfigPath = writeConfig(t, `
[engine]
initial_value = 40

[logging]
level = "error"
`)
	initial := int64(7)
	opts.InitialValue = &initial
	opts.MaxEntries = 9
	opts.LogLevel = "DEBUG"
	opts.LogFormat = "json"
	opts.ReadOnly = true

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	cfg := app.Config()
	if cfg.Engine.InitialValue != 7 || cfg.Engine.MaxEntries != 9 || !cfg.Engine.ReadOnly {
		t.Errorf("engine config not overridden: %+v", cfg.Engine)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging config not overridden: %+v", cfg.Logging)
	}
	if _, err := app.Engine().Compute(engine.Add, 1); !errors.Is(err, engine.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if !strings.Contains(logs.String(), `"msg":"application initialized"`) {
		t.Errorf("expected JSON debug log, got %q", logs.String())
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mutate  func(*Options)
	}{
		{"bad toml", "[engine\n", nil},
		{"invalid value", "[engine]\nmax_entries = -1\n", nil},
		{"invalid override", "", func(o *Options) { o.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _, _ := testOptions(t, "")
			opts.ConfigPath = writeConfig(t, tt.content)
			if tt.mutate != nil {
				tt.mutate(&opts)
			}

			_, err := New(opts)
			var ierr *InitError
			if !errors.As(err, &ierr) || ierr.Component != "config" {
				t.Errorf("expected config InitError, got %v", err)
			}
		})
	}
}

func TestRunREPL(t *testing.T) {
	opts, out, _ := testOptions(t, "+ 100\n- 50\nundo\nvalue\nquit\n")
	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := "Current value = 100 (following + 100)\n" +
		"Current value =  50 (following - 50)\n" +
		"\n---- Undo 1 levels\n" +
		"Current value = 100 (following + 50)\n" +
		"Current value = 100\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if app.IsRunning() {
		t.Error("expected Run to have finished")
	}
}

func TestRunScript(t *testing.T) {
	opts, out, _ := testOptions(t, "")
	opts.ScriptPath = filepath.Join(t.TempDir(), "calc.lua")
	if err := os.WriteFile(opts.ScriptPath, []byte("tally.add(2)\ntally.mul(21)\nprint(tally.value())\n"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := "Current value =   2 (following + 2)\n" +
		"Current value =  42 (following * 21)\n" +
		"42\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunScriptInstructionLimit(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	opts.ConfigPath = writeConfig(t, "[script]\ninstruction_limit = 2\n")
	opts.ScriptPath = filepath.Join(t.TempDir(), "loop.lua")
	if err := os.WriteFile(opts.ScriptPath, []byte("for i = 1, 5 do tally.add(1) end\n"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(context.Background()); err == nil {
		t.Fatal("expected instruction limit error")
	}
	if app.Engine().Value() != 2 {
		t.Errorf("expected 2, got %d", app.Engine().Value())
	}
}

func TestShutdownIdempotent(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	app.Shutdown()
	app.Shutdown()

	if !app.Engine().IsClosed() {
		t.Error("expected closed engine")
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchConfigReloads(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	logs := &syncBuffer{}
	opts.LogOutput = logs
	opts.ConfigPath = writeConfig(t, "[engine]\nmax_entries = 10\n")
	opts.WatchConfig = true

	pr, pw := io.Pipe()
	defer pw.Close()
	opts.Input = pr

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// Give the watcher time to start before rewriting the file.
	deadline := time.Now().Add(3 * time.Second)
	for app.Engine().MaxEntries() != 2 && time.Now().Before(deadline) {
		if err := os.WriteFile(opts.ConfigPath, []byte("[engine]\nmax_entries = 2\n"), 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	if app.Engine().MaxEntries() != 2 {
		t.Errorf("max entries = %d, want 2", app.Engine().MaxEntries())
	}

	for !strings.Contains(logs.String(), "config reloaded") && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
	if !strings.Contains(logs.String(), "config reloaded") {
		t.Errorf("missing reload log: %q", logs.String())
	}
}

func TestWatchConfigReloadsAfterRecreate(t *testing.T) {
	opts, _, _ := testOptions(t, "")
	opts.LogOutput = &syncBuffer{}
	opts.ConfigPath = writeConfig(t, "[engine]\nmax_entries = 10\n")
	opts.WatchConfig = true

	pr, pw := io.Pipe()
	defer pw.Close()
	opts.Input = pr

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(3 * time.Second)
	for app.Engine().MaxEntries() != 3 && time.Now().Before(deadline) {
		if err := os.Remove(opts.ConfigPath); err != nil && !os.IsNotExist(err) {
			t.Fatalf("remove config: %v", err)
		}
		if err := os.WriteFile(opts.ConfigPath, []byte("[engine]\nmax_entries = 3\n"), 0o600); err != nil {
			t.Fatalf("recreate config: %v", err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	if app.Engine().MaxEntries() != 3 {
		t.Errorf("max entries = %d, want 3", app.Engine().MaxEntries())
	}
}
