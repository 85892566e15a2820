package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dshills/tally/internal/engine"
	"github.com/dshills/tally/internal/script"
)

// DefaultCheckpoint is the checkpoint name used when none is given.
const DefaultCheckpoint = "default"

// ErrNoGroup indicates end or cancel without begin.
var ErrNoGroup = errors.New("no group in progress")

// REPL reads commands line by line and applies them to an engine.
//
// Every applied step is echoed as
//
//	Current value = 500 (following * 10)
//
// through an engine subscription, so undo and redo show each
// intermediate value.
type REPL struct {
	mu sync.Mutex

	engine  *engine.Engine
	script  *script.State
	out     io.Writer
	printer *message.Printer
	logger  *slog.Logger
	prompt  string

	checkpoints map[string]engine.Checkpoint
	unsubscribe func()
	line        int
}

// REPLOption configures a REPL.
type REPLOption func(*REPL)

// WithPrompt sets the prompt written before each line is read.
func WithPrompt(p string) REPLOption {
	return func(r *REPL) {
		r.prompt = p
	}
}

// WithLanguage sets the language used to format numbers.
func WithLanguage(tag language.Tag) REPLOption {
	return func(r *REPL) {
		r.printer = message.NewPrinter(tag)
	}
}

// WithScript enables the lua command.
func WithScript(s *script.State) REPLOption {
	return func(r *REPL) {
		r.script = s
	}
}

// WithREPLLogger sets the logger.
func WithREPLLogger(l *slog.Logger) REPLOption {
	return func(r *REPL) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewREPL creates a REPL writing to out and subscribes it to e.
// Call Close to unsubscribe.
func NewREPL(e *engine.Engine, out io.Writer, opts ...REPLOption) *REPL {
	r := &REPL{
		engine:      e,
		out:         out,
		printer:     message.NewPrinter(language.English),
		logger:      slog.New(slog.DiscardHandler),
		checkpoints: make(map[string]engine.Checkpoint),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = e.Subscribe(r.echo)
	return r
}

// Close detaches the REPL from its engine.
func (r *REPL) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *REPL) echo(c engine.Change) {
	r.printf("Current value = %3d (following %s)\n", c.Value, c.Description)
}

func (r *REPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printer.Fprintf(r.out, format, args...)
}

func (r *REPL) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.out, s)
}

// Run executes lines from in until EOF, quit or ctx is done.
// Command failures are reported on the output and do not stop the loop.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		if r.prompt != "" {
			r.write(r.prompt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}

			err := r.Exec(ctx, line)
			switch {
			case err == nil:
			case errors.Is(err, ErrQuit):
				return nil
			default:
				r.logger.Debug("command failed", "line", r.line, "error", err)
				r.printf("error: %v\n", err)
			}
		}
	}
}

// Exec runs a single command line.
func (r *REPL) Exec(ctx context.Context, line string) (err error) {
	r.line++

	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	fields := splitCommand(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			r.logger.Debug("command panicked", "line", r.line, "panic", rec, "stack", stack)
			err = NewRecoveredPanicError(rec, stack)
		}
		if err != nil && !errors.Is(err, ErrQuit) {
			err = NewCommandError(r.line, name, err)
		}
	}()

	if name == "lua" {
		return r.runLua(ctx, strings.TrimSpace(line[len(fields[0]):]))
	}
	if op, perr := engine.ParseOperation(name); perr == nil {
		return r.compute(op, args)
	}

	cmd, ok := commands[name]
	if !ok {
		return ErrUnknownCommand
	}
	return cmd.run(r, args)
}

// splitCommand splits a line into words. A leading operator symbol
// glued to its operand ("+100") is split into two words.
func splitCommand(line string) []string {
	fields := strings.Fields(line)
	first := fields[0]
	if len(first) > 1 && strings.ContainsRune("+-*/", rune(first[0])) {
		if _, err := strconv.ParseInt(first[1:], 10, 64); err == nil {
			return append([]string{first[:1], first[1:]}, fields[1:]...)
		}
	}
	return fields
}

func (r *REPL) compute(op engine.Operation, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s <operand>", ErrUsage, op)
	}
	operand, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid operand %q", ErrUsage, args[0])
	}
	_, err = r.engine.Compute(op, operand)
	return err
}

func (r *REPL) runLua(ctx context.Context, code string) error {
	if r.script == nil {
		return ErrScriptingDisabled
	}
	if code == "" {
		return fmt.Errorf("%w: lua <code>", ErrUsage)
	}
	return r.script.DoString(ctx, code)
}

// levels parses an optional level count, defaulting to 1.
func levels(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || len(args) > 1 {
		return 0, fmt.Errorf("%w: expected a non-negative level count", ErrUsage)
	}
	return n, nil
}

func nameArg(args []string, def string) string {
	if len(args) == 0 {
		return def
	}
	return strings.Join(args, " ")
}

type command struct {
	usage   string
	summary string
	run     func(r *REPL, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"undo":       {"undo [n]", "undo the last n operations", cmdUndo},
		"redo":       {"redo [n]", "redo the next n undone operations", cmdRedo},
		"value":      {"value", "print the current value", cmdValue},
		"history":    {"history", "list history entries; * marks applied ones", cmdHistory},
		"export":     {"export", "print the session as JSON", cmdExport},
		"begin":      {"begin [name]", "start a group undone as one unit", cmdBegin},
		"end":        {"end", "close the current group", cmdEnd},
		"cancel":     {"cancel", "roll back the current group", cmdCancel},
		"checkpoint": {"checkpoint [name]", "remember the current position", cmdCheckpoint},
		"restore":    {"restore [name]", "undo or redo back to a checkpoint", cmdRestore},
		"clear":      {"clear", "forget all history, keeping the value", cmdClear},
		"help":       {"help", "show this help", cmdHelp},
		"quit":       {"quit", "leave", cmdQuit},
		"exit":       {"exit", "leave", cmdQuit},
	}
}

func cmdUndo(r *REPL, args []string) error {
	n, err := levels(args)
	if err != nil {
		return err
	}
	r.printf("\n---- Undo %d levels\n", n)
	_, err = r.engine.Undo(n)
	return err
}

func cmdRedo(r *REPL, args []string) error {
	n, err := levels(args)
	if err != nil {
		return err
	}
	r.printf("\n---- Redo %d levels\n", n)
	_, err = r.engine.Redo(n)
	return err
}

func cmdValue(r *REPL, _ []string) error {
	r.printf("Current value = %3d\n", r.engine.Value())
	return nil
}

func cmdHistory(r *REPL, _ []string) error {
	entries := r.engine.History()
	if len(entries) == 0 {
		r.printf("history is empty\n")
		return nil
	}
	for i, info := range entries {
		mark := " "
		if info.Applied {
			mark = "*"
		}
		r.printf("%4d %s %s\n", i+1, mark, info.Description)
	}
	return nil
}

func cmdExport(r *REPL, _ []string) error {
	data, err := r.engine.ExportJSON()
	if err != nil {
		return err
	}
	r.write(string(data) + "\n")
	return nil
}

func cmdBegin(r *REPL, args []string) error {
	name := nameArg(args, "group")
	if r.engine.IsGrouping() {
		return fmt.Errorf("%w: a group is already open", ErrUsage)
	}
	if err := r.engine.BeginGroup(name); err != nil {
		return err
	}
	r.printf("group %q started\n", name)
	return nil
}

func cmdEnd(r *REPL, _ []string) error {
	if !r.engine.IsGrouping() {
		return ErrNoGroup
	}
	r.engine.EndGroup()
	r.printf("group ended\n")
	return nil
}

func cmdCancel(r *REPL, _ []string) error {
	if !r.engine.IsGrouping() {
		return ErrNoGroup
	}
	if err := r.engine.CancelGroup(); err != nil {
		return err
	}
	r.printf("group cancelled\n")
	return nil
}

func cmdCheckpoint(r *REPL, args []string) error {
	name := nameArg(args, DefaultCheckpoint)
	r.checkpoints[name] = r.engine.Checkpoint()
	r.printf("checkpoint %q saved\n", name)
	return nil
}

func cmdRestore(r *REPL, args []string) error {
	name := nameArg(args, DefaultCheckpoint)
	cp, ok := r.checkpoints[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoCheckpoint, name)
	}
	r.printf("\n---- Restore %s\n", name)
	return r.engine.RestoreCheckpoint(cp)
}

func cmdClear(r *REPL, _ []string) error {
	if err := r.engine.ClearHistory(); err != nil {
		return err
	}
	r.printf("history cleared\n")
	return nil
}

func cmdHelp(r *REPL, _ []string) error {
	var b strings.Builder
	b.WriteString("  <op> <n>            apply + - * / (or add, sub, mul, div) with operand n\n")
	b.WriteString("  lua <code>          run Lua code against the session\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-19s %s\n", c.usage, c.summary)
	}
	r.write(b.String())
	return nil
}

func cmdQuit(*REPL, []string) error {
	return ErrQuit
}
