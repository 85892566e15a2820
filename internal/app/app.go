package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/text/language"

	"github.com/dshills/tally/internal/config"
	"github.com/dshills/tally/internal/config/watcher"
	"github.com/dshills/tally/internal/engine"
	"github.com/dshills/tally/internal/script"
)

// Application owns one calculator session and the components around it.
type Application struct {
	mu sync.Mutex

	config     *config.Config
	configPath string
	logger     *slog.Logger
	level      slog.LevelVar

	engine *engine.Engine
	script *script.State
	repl   *REPL

	running atomic.Bool
	closed  bool

	opts Options
}

// Options configures the application. Zero values fall back to the
// loaded configuration.
type Options struct {
	// ConfigPath is the path to the configuration file.
	// Empty means the user configuration file.
	ConfigPath string

	// LogLevel overrides logging.level.
	LogLevel string

	// LogFormat overrides logging.format.
	LogFormat string

	// ScriptPath runs a Lua file instead of the interactive loop.
	ScriptPath string

	// InitialValue overrides engine.initial_value when non-nil.
	InitialValue *int64

	// MaxEntries overrides engine.max_entries when positive.
	MaxEntries int

	// ReadOnly forces a read-only session.
	ReadOnly bool

	// WatchConfig reloads logging.level and engine.max_entries from the
	// configuration file while Run is executing.
	WatchConfig bool

	// Prompt is written before each interactive line.
	Prompt string

	// Language selects number formatting. Defaults to English.
	Language language.Tag

	// Input, Output and LogOutput default to the process streams.
	Input     io.Reader
	Output    io.Writer
	LogOutput io.Writer
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}

	app := &Application{opts: opts}
	if err := app.bootstrap(); err != nil {
		app.shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	path := app.opts.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg
	app.configPath = path

	// 2. Logger
	logger, err := NewLogger(LoggerConfig{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   app.opts.LogOutput,
		LevelVar: &app.level,
	})
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	app.logger = logger

	// 3. Engine
	engineOpts := []engine.Option{
		engine.WithInitialValue(cfg.Engine.InitialValue),
		engine.WithMaxEntries(cfg.Engine.MaxEntries),
		engine.WithLogger(logger),
	}
	if cfg.Engine.ReadOnly {
		engineOpts = append(engineOpts, engine.WithReadOnly())
	}
	app.engine = engine.New(engineOpts...)

	// 4. Script runtime
	app.script, err = script.NewState(app.engine,
		script.WithInstructionLimit(cfg.Script.InstructionLimit),
		script.WithOutput(app.opts.Output),
		script.WithLogger(logger.With("component", "script")),
	)
	if err != nil {
		return &InitError{Component: "script", Err: err}
	}

	// 5. REPL
	app.repl = NewREPL(app.engine, app.opts.Output,
		WithPrompt(app.opts.Prompt),
		WithLanguage(app.opts.Language),
		WithScript(app.script),
		WithREPLLogger(logger.With("component", "repl")),
	)

	logger.Debug("application initialized", "config", path, "session", app.engine.ID().String())
	return nil
}

func (app *Application) applyOverrides(cfg *config.Config) {
	if app.opts.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(app.opts.LogLevel)
	}
	if app.opts.LogFormat != "" {
		cfg.Logging.Format = strings.ToLower(app.opts.LogFormat)
	}
	if app.opts.InitialValue != nil {
		cfg.Engine.InitialValue = *app.opts.InitialValue
	}
	if app.opts.MaxEntries > 0 {
		cfg.Engine.MaxEntries = app.opts.MaxEntries
	}
	if app.opts.ReadOnly {
		cfg.Engine.ReadOnly = true
	}
}

// Run runs the script given in Options.ScriptPath, or the interactive
// loop when there is none. It blocks until the input ends, quit is
// entered, the script finishes or ctx is done.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.opts.WatchConfig && app.configPath != "" {
		w, err := app.watchConfig()
		if err != nil {
			app.logger.Warn("config watch disabled", "path", app.configPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	if app.opts.ScriptPath != "" {
		app.logger.Info("running script", "path", app.opts.ScriptPath)
		if err := app.script.DoFile(ctx, app.opts.ScriptPath); err != nil {
			return err
		}
		app.logger.Info("script finished", "value", app.engine.Value())
		return nil
	}

	return app.repl.Run(ctx, app.opts.Input)
}

// watchConfig starts watching the configuration file.
func (app *Application) watchConfig() (*watcher.Watcher, error) {
	w, err := watcher.New()
	if err != nil {
		return nil, err
	}
	if err := w.Watch(app.configPath); err != nil {
		w.Close()
		return nil, err
	}
	w.OnChange(app.reloadConfig)
	app.logger.Debug("watching config", "path", app.configPath)
	return w, nil
}

// reloadConfig applies the settings that can change during a session.
// Values given as options keep precedence over the file.
func (app *Application) reloadConfig(ev watcher.Event) {
	if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
		return
	}

	cfg, err := config.Load(app.configPath)
	if err != nil {
		app.logger.Warn("config reload failed", "path", ev.Path, "error", err)
		return
	}

	if app.opts.LogLevel == "" {
		app.level.Set(ParseLogLevel(cfg.Logging.Level))
	}
	if app.opts.MaxEntries <= 0 && cfg.Engine.MaxEntries != app.engine.MaxEntries() {
		app.engine.SetMaxEntries(cfg.Engine.MaxEntries)
	}
	app.logger.Info("config reloaded", "path", ev.Path, "level", app.level.Level().String())
}

// Shutdown releases the session. It is safe to call more than once.
func (app *Application) Shutdown() {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.closed {
		return
	}
	app.closed = true
	app.shutdown()
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() {
	if app.repl != nil {
		app.repl.Close()
	}
	if app.script != nil {
		app.script.Close()
	}
	if app.engine != nil {
		app.engine.Close()
		app.logger.Debug("application shut down", "value", app.engine.Value())
	}
}

// IsRunning returns true while Run is executing.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Engine returns the calculator session.
func (app *Application) Engine() *engine.Engine {
	return app.engine
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}
