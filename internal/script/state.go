package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/tally/internal/engine"
)

// Default limits for a State.
const (
	DefaultExecutionTimeout = 5 * time.Second
	DefaultInstructionLimit = 1_000_000
)

// Logger is the logging interface used by the script runtime.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// State is a sandboxed Lua interpreter bound to one engine.
//
// gopher-lua's LState is not goroutine-safe; State serializes all runs
// with a mutex.
type State struct {
	L *lua.LState

	mu sync.Mutex

	engine *engine.Engine
	output io.Writer
	logger Logger

	executionTimeout time.Duration
	instructionLimit int64
	instructions     int64
	exceeded         bool

	closed bool
}

// Option configures a State.
type Option func(*State)

// WithExecutionTimeout bounds the wall time of a single run.
// Zero or negative disables the timeout; the caller's context still applies.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithInstructionLimit sets how many calls into the tally table a single
// run may make. Zero disables the limit.
func WithInstructionLimit(limit int64) Option {
	return func(s *State) {
		s.instructionLimit = limit
	}
}

// WithOutput redirects Lua's print.
func WithOutput(w io.Writer) Option {
	return func(s *State) {
		s.output = w
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewState creates a sandboxed Lua state with the tally table bound to e.
func NewState(e *engine.Engine, opts ...Option) (*State, error) {
	if e == nil {
		return nil, ErrNoEngine
	}

	s := &State{
		engine:           e,
		output:           os.Stdout,
		logger:           nopLogger{},
		executionTimeout: DefaultExecutionTimeout,
		instructionLimit: DefaultInstructionLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(s.L)
	s.sandbox()
	s.registerTally()

	return s, nil
}

// openSafeLibraries opens only the libraries that cannot reach the host.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes loaders and replaces print.
func (s *State) sandbox() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		fmt.Fprintln(s.output, strings.Join(parts, "\t"))
		return 0
	}))
}

// DoString runs a chunk of Lua code.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, "string", func() error {
		return s.L.DoString(code)
	})
}

// DoFile runs a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, path, func() error {
		return s.L.DoFile(path)
	})
}

func (s *State) run(ctx context.Context, source string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}

	s.instructions = 0
	s.exceeded = false
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	s.logger.Debug("script started", "source", source)
	err := s.doWithRecovery(fn)
	switch {
	case err == nil:
		s.logger.Debug("script finished", "source", source, "calls", s.instructions)
		return nil
	case s.exceeded:
		err = fmt.Errorf("%s: %w", source, ErrInstructionLimit)
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", source, ctx.Err())
	default:
		err = fmt.Errorf("%s: %w", source, err)
	}
	s.logger.Warn("script failed", "source", source, "error", err)
	return err
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// charge counts one call into the tally table and raises a Lua error
// once the budget is spent.
func (s *State) charge(L *lua.LState) {
	s.instructions++
	if s.instructionLimit > 0 && s.instructions > s.instructionLimit {
		s.exceeded = true
		L.RaiseError("%s", ErrInstructionLimit.Error())
	}
}

// Instructions returns how many tally calls the last run made.
func (s *State) Instructions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instructions
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. The engine is not closed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
