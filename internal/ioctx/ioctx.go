// Package ioctx provides the output context threaded through action
// execution: severity-channeled writers, command echo, and quiet-mode
// toggling, plus a per-run correlation id attached to the structured
// logger.
package ioctx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Context is the I/O sink passed to every Action.Execute call. It mirrors
// the teacher's quiet/verbose/debug triad, plus the "command echo" toggle
// used by Hidden and quiet ('@'-prefixed) shell actions.
type Context struct {
	Out io.Writer // standard output of the running action
	Err io.Writer // standard error of the running action

	mu          sync.Mutex
	log         *slog.Logger
	runID       string
	quiet       bool // quiet mode (-s): no command echo, no info/success output
	commandEcho bool // print commands before running them
}

// New builds a Context writing to the given streams, logging through
// logger, with a fresh run correlation id.
func New(out, err io.Writer, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	runID := ulid.Make().String()
	return &Context{
		Out:         out,
		Err:         err,
		log:         logger.With(slog.String("run_id", runID)),
		runID:       runID,
		commandEcho: true,
	}
}

// Default builds a Context over os.Stdout/os.Stderr.
func Default() *Context {
	return New(os.Stdout, os.Stderr, slog.Default())
}

// RunID returns the ULID correlation id for this build run.
func (c *Context) RunID() string {
	return c.runID
}

// Logger returns the structured logger scoped to this run.
func (c *Context) Logger() *slog.Logger {
	return c.log
}

// SetQuiet enables or disables quiet mode (-s): no command echo, no
// info/success messages; warnings and errors are still printed.
func (c *Context) SetQuiet(quiet bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quiet = quiet
}

// IsQuiet reports whether quiet mode is active.
func (c *Context) IsQuiet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiet
}

// SetCommandEcho enables or disables printing of the commands about to run;
// used by Hidden and '@'-prefixed shell actions to silence just themselves.
func (c *Context) SetCommandEcho(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandEcho = enabled
}

// CommandEchoEnabled reports whether command echo is currently active.
func (c *Context) CommandEchoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandEcho
}

// PrintCommand echoes a command line, unless suppressed.
func (c *Context) PrintCommand(line string) {
	if c.IsQuiet() || !c.CommandEchoEnabled() {
		return
	}
	fmt.Fprintln(c.Out, line)
}

// PrintInfo prints an informational message, unless in quiet mode.
func (c *Context) PrintInfo(msg string) {
	if c.IsQuiet() {
		return
	}
	fmt.Fprintln(c.Out, msg)
	c.log.Info(msg)
}

// PrintWarning prints a warning, always (quiet mode only silences info).
func (c *Context) PrintWarning(msg string) {
	fmt.Fprintln(c.Err, "WARNING: "+msg)
	c.log.Warn(msg)
}

// PrintError prints an error, always.
func (c *Context) PrintError(msg string) {
	fmt.Fprintln(c.Err, "ERROR: "+msg)
	c.log.Error(msg)
}

// PrintSuccess announces that a target was built successfully.
func (c *Context) PrintSuccess(target string) {
	if c.IsQuiet() {
		return
	}
	fmt.Fprintf(c.Out, "%s: done\n", target)
}

// PrintActionStart announces that a target's recipe is starting, without a
// trailing newline, so PrintActionDone can complete the line in place.
func (c *Context) PrintActionStart(target string) {
	if c.IsQuiet() {
		return
	}
	fmt.Fprintf(c.Out, "%s: building... ", target)
}

// PrintActionDone completes the line started by PrintActionStart.
func (c *Context) PrintActionDone(ok bool) {
	if c.IsQuiet() {
		return
	}
	if ok {
		fmt.Fprintln(c.Out, "ok")
	} else {
		fmt.Fprintln(c.Out, "failed")
	}
}
