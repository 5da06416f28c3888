// Package logging provides the leveled slog.Handler the CLI configures
// from its quiet/verbose/debug flags.
//
// Grounded on the teacher's cmd/cruxd/cruxd.go (logger(), logLevel()) and
// internal/cli/root.go (configureLogger): same call shape — SetLevel,
// SetStream, a pretty/plain switch keyed on isatty — reimplemented
// directly against log/slog.Handler since the teacher's own crex package
// (github.com/cruciblehq/go-utils) is an unavailable sibling module not
// present in the retrieval pack (see DESIGN.md).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Handler is a minimal leveled handler: plain "TIME LEVEL message key=value..."
// lines when not a terminal, compact colorized lines when writing to one.
// Level and stream are mutable after construction, the way crex.Handler's
// SetLevel/SetStream let the CLI reconfigure logging after flag parsing.
type Handler struct {
	mu      sync.Mutex
	level   slog.Level
	out     io.Writer
	pretty  bool
	verbose bool
	group   string
	attrs   []slog.Attr
}

// NewHandler creates a Handler writing to os.Stderr at info level.
func NewHandler() *Handler {
	return &Handler{level: slog.LevelInfo, out: os.Stderr, pretty: isTerminal(os.Stderr)}
}

// SetLevel changes the minimum level emitted.
func (h *Handler) SetLevel(level slog.Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// SetStream redirects output.
func (h *Handler) SetStream(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = w
	if f, ok := w.(*os.File); ok {
		h.pretty = isTerminal(f)
	} else {
		h.pretty = false
	}
}

// SetVerbose toggles inclusion of a timestamp in the pretty (terminal)
// line format (the group prefix is printed either way), mirroring the
// teacher's formatter.SetVerbose(verbose) call made right after flag
// parsing.
func (h *Handler) SetVerbose(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.verbose = enabled
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var line string
	if h.pretty {
		line = fmt.Sprintf("%s%-5s%s %s", colorFor(r.Level), r.Level.String(), colorReset, r.Message)
		if h.verbose {
			line = fmt.Sprintf("%s %s", r.Time.Format(time.RFC3339), line)
		}
	} else {
		line = fmt.Sprintf("%s %-5s %s", r.Time.Format(time.RFC3339), r.Level.String(), r.Message)
	}
	if h.group != "" {
		line = fmt.Sprintf("[%s] %s", h.group, line)
	}

	attrs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("%s=%v", a.Key, a.Value))
		return true
	})
	for _, a := range attrs {
		line += " " + a
	}

	_, err := fmt.Fprintln(h.out, line)
	return err
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := &Handler{level: h.level, out: h.out, pretty: h.pretty, verbose: h.verbose, group: h.group}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return clone
}

// WithGroup implements slog.Handler. Groups are flattened into the message
// prefix rather than nested, matching the teacher's single top-level group
// use (".WithGroup(internal.Name)").
func (h *Handler) WithGroup(name string) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := &Handler{level: h.level, out: h.out, pretty: h.pretty, verbose: h.verbose, group: h.group, attrs: h.attrs}
	if clone.group == "" {
		clone.group = name
	} else {
		clone.group = clone.group + "." + name
	}
	return clone
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

const colorReset = "\x1b[0m"

func colorFor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m"
	case level >= slog.LevelWarn:
		return "\x1b[33m"
	case level >= slog.LevelInfo:
		return "\x1b[36m"
	default:
		return "\x1b[90m"
	}
}
