// Package action implements the action model of SPEC_FULL.md §4.4: the
// executable unit bound to a recipe, covering shell invocation, grouping,
// arbitrary Go functions, output filtering, filesystem mutations, and the
// quiet/hidden display wrappers.
//
// Grounded on the original implementation's action.py (ShellAction,
// GroupAction, FunAction, Grep, Remove, Move, Invoke, Hidden, Print,
// MakeDir, MakeFile, Rename, make_actions, invoke, make_line) with process
// execution reimplemented against os/exec instead of subprocess.Popen, and
// command echo tokenized with github.com/google/shlex instead of a
// hand-written shell-quote splitter.
package action

import (
	"context"
	"fmt"
	io2 "io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/path"
)

// displayCommand re-tokenizes and re-quotes cmd for dry-run/verbose display,
// so a command line built up with irregular internal whitespace (common
// once environment values are interpolated in) echoes as a single
// normalized, correctly-quoted line rather than verbatim.
func displayCommand(cmd string) string {
	tokens, err := shlex.Split(cmd)
	if err != nil || len(tokens) == 0 {
		return cmd
	}
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		if strings.ContainsAny(tok, " \t\"'") {
			parts[i] = "'" + strings.ReplaceAll(tok, "'", `'\''`) + "'"
		} else {
			parts[i] = tok
		}
	}
	return strings.Join(parts, " ")
}

// Action is the unit of work a recipe executes to produce its results.
type Action interface {
	// Execute performs the action, writing to io's streams. It returns an
	// error wrapping ErrActionFailed on failure.
	Execute(ctx context.Context, io *ioctx.Context) error

	// Commands appends the display form of this action's commands to cmds,
	// one entry per line the way the build log prints it.
	Commands(cmds *[]string)

	// Signature returns a string capturing everything about this action
	// that should force a rebuild if it changes. An empty signature means
	// the action never forces a rebuild on its own.
	Signature() string
}

// ErrActionFailed is wrapped by any Execute error caused by the action
// itself (non-zero exit code, filesystem operation failure).
var ErrActionFailed = errors.New("action failed")

// null is the action bound to a recipe with no declared steps.
type null struct{}

func (null) Execute(context.Context, *ioctx.Context) error { return nil }
func (null) Commands(*[]string)                            {}
func (null) Signature() string                              { return "" }

// Null is the no-op action, used for recipes with no work to perform.
var Null Action = null{}

// Shell is an action that invokes a command line through the host shell.
// A command prefixed with '@' runs quietly (its command line is never
// echoed), mirroring the original's convention.
type Shell struct {
	cmd    string
	quiet  bool
	noOut  bool
	noErr  bool
}

// NewShell builds a Shell action from a command line, honoring a leading
// '@' as the quiet marker.
func NewShell(cmd string) *Shell {
	quiet := false
	if strings.HasPrefix(cmd, "@") {
		quiet = true
		cmd = cmd[1:]
	}
	return &Shell{cmd: cmd, quiet: quiet}
}

// SuppressOutput prevents stdout from the spawned process from being
// forwarded to the io context.
func (s *Shell) SuppressOutput() *Shell { s.noOut = true; return s }

// SuppressError prevents stderr from the spawned process from being
// forwarded to the io context.
func (s *Shell) SuppressError() *Shell { s.noErr = true; return s }

func (s *Shell) Execute(ctx context.Context, io *ioctx.Context) error {
	if s.quiet {
		saved := io.CommandEchoEnabled()
		io.SetCommandEcho(false)
		defer io.SetCommandEcho(saved)
	}
	return invoke(ctx, s.cmd, io, s.noOut, s.noErr)
}

func (s *Shell) Commands(cmds *[]string) {
	*cmds = append(*cmds, displayCommand(s.cmd))
}

func (s *Shell) Signature() string { return s.cmd }

// invoke runs cmd through "sh -c", pumping its stdout/stderr to io unless
// suppressed, and echoing the command line first unless command echo is
// disabled. Each stream is drained by its own goroutine through a
// doneReader so the caller can tell the two pumps apart from the process
// exit itself, the way the original select()-based loop distinguished
// "stream closed" from "process exited".
func invoke(ctx context.Context, cmd string, io *ioctx.Context, noOut, noErr bool) error {
	io.PrintCommand(cmd)

	c := exec.CommandContext(ctx, "sh", "-c", cmd)

	var pumps []*doneReader

	if noOut {
		c.Stdout = nil
	} else {
		stdout, err := c.StdoutPipe()
		if err != nil {
			return errors.Wrap(err, "shell action")
		}
		d := newDoneReader(stdout)
		pumps = append(pumps, d)
		go io2.Copy(io.Out, d)
	}

	if noErr {
		c.Stderr = nil
	} else {
		stderr, err := c.StderrPipe()
		if err != nil {
			return errors.Wrap(err, "shell action")
		}
		d := newDoneReader(stderr)
		pumps = append(pumps, d)
		go io2.Copy(io.Err, d)
	}

	if err := c.Start(); err != nil {
		return errors.Wrapf(ErrActionFailed, "command %q: %v", cmd, err)
	}
	for _, d := range pumps {
		<-d.done
	}
	if err := c.Wait(); err != nil {
		return errors.Wrapf(ErrActionFailed, "command %q: %v", cmd, err)
	}
	return nil
}

// Output runs cmd through the host shell and collects its standard output,
// following each line with a single space (so the result ends in a trailing
// space) the way StreamCollector.write folded
// each newline-terminated chunk into one accumulating buffer. It is meant
// for use from script code computing a value from a command's result (for
// example reading back a compiler's version string), not from a recipe's
// own action list.
func Output(ctx context.Context, cmd string) (string, error) {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	raw, err := c.Output()
	if err != nil {
		return "", errors.Wrapf(ErrActionFailed, "command %q: %v", cmd, err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	return strings.Join(lines, " ") + " ", nil
}

// Group runs a sequence of sub-actions in order, stopping at the first
// failure.
type Group struct {
	actions []Action
}

// NewGroup builds a Group from a flattened list of actions.
func NewGroup(actions ...Action) *Group {
	return &Group{actions: actions}
}

func (g *Group) Execute(ctx context.Context, io *ioctx.Context) error {
	for _, a := range g.actions {
		if err := a.Execute(ctx, io); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) Commands(cmds *[]string) {
	for _, a := range g.actions {
		a.Commands(cmds)
	}
}

func (g *Group) Signature() string {
	parts := make([]string, 0, len(g.actions))
	for _, a := range g.actions {
		parts = append(parts, a.Signature())
	}
	return strings.Join(parts, "\n")
}

// Fun is an action implemented by an arbitrary Go function. Its signature
// is always empty: it never forces a rebuild on its own (SPEC_FULL.md §9,
// Open Question 2), mirroring FunAction's lack of a signature override.
type Fun struct {
	fn func(ctx context.Context, io *ioctx.Context) error
}

// NewFun wraps fn as an Action.
func NewFun(fn func(ctx context.Context, io *ioctx.Context) error) *Fun {
	return &Fun{fn: fn}
}

func (f *Fun) Execute(ctx context.Context, io *ioctx.Context) error {
	return f.fn(ctx, io)
}

func (f *Fun) Commands(cmds *[]string) {
	*cmds = append(*cmds, "<function>")
}

func (f *Fun) Signature() string { return "" }

// Grep filters the stdout and/or stderr (each selected by its own flag) of a
// wrapped action
// through a regular expression, forwarding only matching lines.
type Grep struct {
	exp        *regexp.Regexp
	inner      Action
	filterOut  bool
	filterErr  bool
}

// NewGrep wraps inner so that lines on the chosen streams not matching
// pattern are dropped.
func NewGrep(pattern string, inner Action, filterOut, filterErr bool) (*Grep, error) {
	exp, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "grep action")
	}
	return &Grep{exp: exp, inner: inner, filterOut: filterOut, filterErr: filterErr}, nil
}

func (g *Grep) Execute(ctx context.Context, io *ioctx.Context) error {
	origOut, origErr := io.Out, io.Err
	if g.filterOut {
		io.Out = &grepWriter{exp: g.exp, out: origOut}
	}
	if g.filterErr {
		io.Err = &grepWriter{exp: g.exp, out: origErr}
	}
	err := g.inner.Execute(ctx, io)
	io.Out, io.Err = origOut, origErr
	return err
}

func (g *Grep) Commands(cmds *[]string) {
	var inner []string
	g.inner.Commands(&inner)
	for _, c := range inner {
		*cmds = append(*cmds, fmt.Sprintf("%s | grep %s", c, g.exp.String()))
	}
}

func (g *Grep) Signature() string { return g.inner.Signature() }

// grepWriter implements io.Writer, keeping only lines matching exp.
type grepWriter struct {
	exp *regexp.Regexp
	out io2.Writer
	buf []byte
}

func (w *grepWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := indexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := w.buf[:idx+1]
		if w.exp.Match(line) {
			w.out.Write(line)
		}
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Remove deletes each of the given paths. Errors are ignored when
// ignoreError is set.
type Remove struct {
	paths       []path.Path
	ignoreError bool
}

func NewRemove(paths []path.Path, ignoreError bool) *Remove {
	return &Remove{paths: paths, ignoreError: ignoreError}
}

func (r *Remove) Execute(_ context.Context, io *ioctx.Context) error {
	for _, p := range r.paths {
		io.PrintCommand(fmt.Sprintf("remove %q", p.Display()))
		err := os.RemoveAll(p.String())
		if err != nil && !r.ignoreError {
			return errors.Wrapf(ErrActionFailed, "remove %s: %v", p.Display(), err)
		}
	}
	return nil
}

func (r *Remove) Commands(cmds *[]string) {
	for _, p := range r.paths {
		*cmds = append(*cmds, fmt.Sprintf("remove %s", p.Display()))
	}
}

func (r *Remove) Signature() string {
	parts := make([]string, 0, len(r.paths))
	for _, p := range r.paths {
		parts = append(parts, "remove "+p.Display())
	}
	return strings.Join(parts, "\n")
}

// Move relocates paths into target, a directory.
type Move struct {
	paths  []path.Path
	target path.Path
}

func NewMove(paths []path.Path, target path.Path) *Move {
	return &Move{paths: paths, target: target}
}

func (m *Move) Execute(_ context.Context, io *ioctx.Context) error {
	for _, p := range m.paths {
		dst := m.target.Join(p.Base())
		io.PrintCommand(fmt.Sprintf("move %s to %s", p.Display(), dst.Display()))
		if err := os.Rename(p.String(), dst.String()); err != nil {
			return errors.Wrapf(ErrActionFailed, "move %s to %s: %v", p.Display(), dst.Display(), err)
		}
	}
	return nil
}

func (m *Move) Commands(cmds *[]string) {
	for _, p := range m.paths {
		*cmds = append(*cmds, fmt.Sprintf("move %s to %s", p.Display(), m.target.Display()))
	}
}

func (m *Move) Signature() string {
	parts := make([]string, 0, len(m.paths))
	for _, p := range m.paths {
		parts = append(parts, fmt.Sprintf("move %s to %s", p.Display(), m.target.Display()))
	}
	return strings.Join(parts, "\n")
}

// Invoke runs a command line the same way Shell does, but is meant for
// actions synthesized by generators rather than user script text; it never
// honors the '@' quiet prefix.
type Invoke struct {
	cmd string
}

func NewInvoke(cmd string) *Invoke { return &Invoke{cmd: cmd} }

func (i *Invoke) Execute(ctx context.Context, io *ioctx.Context) error {
	return invoke(ctx, i.cmd, io, false, false)
}

func (i *Invoke) Commands(cmds *[]string) { *cmds = append(*cmds, displayCommand(i.cmd)) }
func (i *Invoke) Signature() string       { return i.cmd }

// Hidden executes a wrapped action without displaying its commands and
// without contributing to the enclosing recipe's signature.
type Hidden struct {
	inner Action
}

func NewHidden(inner Action) *Hidden { return &Hidden{inner: inner} }

func (h *Hidden) Execute(ctx context.Context, io *ioctx.Context) error {
	saved := io.CommandEchoEnabled()
	io.SetCommandEcho(false)
	defer io.SetCommandEcho(saved)
	return h.inner.Execute(ctx, io)
}

func (h *Hidden) Commands(*[]string) {}
func (h *Hidden) Signature() string  { return "" }

// Print emits an informational message through the io context.
type Print struct {
	msg string
}

func NewPrint(msg string) *Print { return &Print{msg: msg} }

func (p *Print) Execute(_ context.Context, io *ioctx.Context) error {
	io.PrintInfo(p.msg)
	return nil
}

func (p *Print) Commands(cmds *[]string) { *cmds = append(*cmds, fmt.Sprintf("print(%s)", p.msg)) }
func (p *Print) Signature() string       { return fmt.Sprintf("print(%s)", p.msg) }

// MakeDir creates a directory and any missing parents.
type MakeDir struct {
	dir path.Path
}

func NewMakeDir(dir path.Path) *MakeDir { return &MakeDir{dir: dir} }

func (m *MakeDir) Execute(_ context.Context, io *ioctx.Context) error {
	io.PrintCommand(fmt.Sprintf("makedir %s", m.dir.Display()))
	if err := os.MkdirAll(m.dir.String(), 0o755); err != nil {
		return errors.Wrapf(ErrActionFailed, "makedir %s: %v", m.dir.Display(), err)
	}
	return nil
}

func (m *MakeDir) Commands(cmds *[]string) { *cmds = append(*cmds, fmt.Sprintf("makedir %s", m.dir.Display())) }
func (m *MakeDir) Signature() string       { return fmt.Sprintf("makedir(%s)", m.dir.Display()) }

// MakeFile writes content to path, creating parent directories as needed.
type MakeFile struct {
	path    path.Path
	content string
}

func NewMakeFile(p path.Path, content string) *MakeFile {
	return &MakeFile{path: p, content: content}
}

func (m *MakeFile) Execute(_ context.Context, io *ioctx.Context) error {
	io.PrintCommand(fmt.Sprintf("makefile %s", m.path.Display()))
	if parent := m.path.Parent(); !parent.IsEmpty() {
		if err := os.MkdirAll(parent.String(), 0o755); err != nil {
			return errors.Wrapf(ErrActionFailed, "makefile %s: %v", m.path.Display(), err)
		}
	}
	if err := os.WriteFile(m.path.String(), []byte(m.content), 0o644); err != nil {
		return errors.Wrapf(ErrActionFailed, "makefile %s: %v", m.path.Display(), err)
	}
	return nil
}

func (m *MakeFile) Commands(cmds *[]string) {
	*cmds = append(*cmds, fmt.Sprintf("makefile(%s)", m.path.Display()))
}
func (m *MakeFile) Signature() string {
	return fmt.Sprintf("makefile(%s, %s)", m.path.Display(), m.content)
}

// Rename renames src to tgt.
type Rename struct {
	src, tgt path.Path
}

func NewRename(src, tgt path.Path) *Rename { return &Rename{src: src, tgt: tgt} }

func (r *Rename) Execute(_ context.Context, io *ioctx.Context) error {
	io.PrintCommand(r.Signature())
	if err := os.Rename(r.src.String(), r.tgt.String()); err != nil {
		return errors.Wrapf(ErrActionFailed, "rename %s to %s: %v", r.src.Display(), r.tgt.Display(), err)
	}
	return nil
}

func (r *Rename) Commands(cmds *[]string) { *cmds = append(*cmds, r.Signature()) }
func (r *Rename) Signature() string {
	return fmt.Sprintf("rename(%s, %s)", r.src.Display(), r.tgt.Display())
}

// MakeActions composes a single Action from zero or more, mirroring
// make_actions: zero actions yields Null, one yields itself, many yield a
// Group.
func MakeActions(actions ...Action) Action {
	filtered := actions[:0]
	for _, a := range actions {
		if a != nil {
			filtered = append(filtered, a)
		}
	}
	switch len(filtered) {
	case 0:
		return Null
	case 1:
		return filtered[0]
	default:
		return NewGroup(filtered...)
	}
}
