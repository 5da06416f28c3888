// Package builder implements the scheduler of SPEC_FULL.md §4.8: given an
// ordered list of stale targets (as produced by traversal.CollectUpdates),
// drive them through one of three modes — Sequential (actually build),
// DryRun (print what would run), Question (report whether anything is
// stale, without building).
//
// Grounded on the original implementation's build.py (Job, Builder,
// SeqBuilder, DryBuilder, QuestBuilder). ParBuilder is intentionally left
// unimplemented, matching the original (an empty class) and SPEC_FULL.md
// §5's "parallel builder permitted but out of scope beyond documented
// constraints".
package builder

import (
	"context"
	"fmt"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/registry"
	"github.com/maatbuild/maat/internal/signature"
)

// ErrActionFailed wraps any failure produced while building a target.
var ErrActionFailed = errors.New("build failed")

// ErrStale is Question mode's signal that at least one non-phony target is
// stale. The original's QuestBuilder calls sys.exit(1) directly; here the
// caller decides how to surface that as a process exit code.
var ErrStale = errors.New("targets are stale")

// Mode selects which of the three scheduling strategies Run uses.
type Mode int

const (
	Sequential Mode = iota
	DryRun
	Question
)

// Builder drives a sequence of stale targets to completion, in the order
// CollectUpdates produced (each dependency before its dependents). top is
// the registry's top directory, used to resolve each target's actual path.
type Builder struct {
	ctx      *ioctx.Context
	targets  []*registry.File
	top      path.Path
	signs    *signature.Store
	showTime bool

	current int
}

// New builds a Builder over targets.
func New(io *ioctx.Context, targets []*registry.File, top path.Path, signs *signature.Store, showTime bool) *Builder {
	return &Builder{ctx: io, targets: targets, top: top, signs: signs, showTime: showTime}
}

func (b *Builder) progress() int {
	if len(b.targets) == 0 {
		return 100
	}
	return b.current * 100 / len(b.targets)
}

// Run executes the build according to mode.
func (b *Builder) Run(ctx context.Context, mode Mode) error {
	switch mode {
	case Question:
		return b.runQuestion()
	case DryRun:
		return b.runDry()
	default:
		return b.runSequential(ctx)
	}
}

func (b *Builder) runQuestion() error {
	for _, t := range b.targets {
		if !t.IsPhony() {
			return ErrStale
		}
	}
	return nil
}

func (b *Builder) runDry() error {
	b.ctx.PrintWarning("dry run!")
	for _, t := range b.targets {
		if t.IsHidden() {
			continue
		}
		b.ctx.PrintInfo(fmt.Sprintf("To make: %s", t.Path().Display()))
		if r := t.Recipe(); r != nil {
			for _, cmd := range r.Commands() {
				b.ctx.PrintCommand(cmd)
			}
		}
	}
	return nil
}

func (b *Builder) runSequential(ctx context.Context) error {
	runStart := time.Now()
	for _, t := range b.targets {
		if !t.IsHidden() {
			b.ctx.PrintInfo(fmt.Sprintf("[%3d%%] Making %s", b.progress(), t.Path().Display()))
		}

		start := time.Now()
		err := b.buildOne(ctx, t)
		elapsed := time.Since(start)

		b.current++
		if err != nil {
			b.save()
			return err
		}
		if !t.IsHidden() && b.showTime {
			b.ctx.PrintInfo(fmt.Sprintf("(%s)", humanize.RelTime(start, start.Add(elapsed), "", "")))
		}
	}

	msg := "[100%] all is fine!"
	if b.showTime {
		msg += fmt.Sprintf(" (%s)", humanize.RelTime(runStart, time.Now(), "", ""))
	}
	b.ctx.PrintInfo(msg)
	return b.save()
}

// buildOne prepares the target's output directories, runs its recipe
// action, and records the resulting signature: Job.prepare / Job.build /
// Job.finalize folded into one call, since this builder has no notion of
// a job outliving a single buildOne invocation.
func (b *Builder) buildOne(ctx context.Context, f *registry.File) error {
	r := f.Recipe()
	if r == nil {
		return nil
	}
	for _, res := range r.Results() {
		if res.IsPhony() {
			continue
		}
		parent := res.Actual(b.top).Parent()
		if !parent.IsEmpty() && !parent.Exists() {
			if err := os.MkdirAll(parent.String(), 0o755); err != nil {
				return errors.Wrapf(ErrActionFailed, "prepare %s: %v", res.Path().Display(), err)
			}
		}
	}

	if f.IsHidden() {
		saved := b.ctx.CommandEchoEnabled()
		b.ctx.SetCommandEcho(false)
		defer b.ctx.SetCommandEcho(saved)
	}
	if err := r.Action().Execute(ctx, b.ctx); err != nil {
		return errors.Wrap(ErrActionFailed, err.Error())
	}

	for _, res := range r.Results() {
		b.signs.Test(res.Path().Display(), r.Signature())
	}
	return nil
}

func (b *Builder) save() error {
	if err := b.signs.Save(); err != nil {
		b.ctx.PrintWarning(err.Error())
	}
	return nil
}
