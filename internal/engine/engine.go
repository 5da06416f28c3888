// Package engine implements the script host interface of SPEC_FULL.md §6:
// the surface an external script front-end drives to register files,
// recipes, and generators, then resolve goals to a build run. It wires
// together registry, generator, recipe, signature, and builder into the
// single stateful object a front-end holds for the lifetime of a build.
//
// Grounded on the original implementation's build.py module-level functions
// (rule/phony/goal/hidden/meta/subdir/gen_action/gen_command, the
// push_env/pop_env stack) which that module exposed as bare functions over
// module-global state; here they become methods on a single Engine value so
// more than one build can coexist in a process (e.g. under test).
package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/builder"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/generator"
	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/recipe"
	"github.com/maatbuild/maat/internal/registry"
	"github.com/maatbuild/maat/internal/signature"
	"github.com/maatbuild/maat/internal/traversal"
)

// ErrScript wraps a script-level misuse of the engine surface: referencing
// an unknown goal, a malformed rule, or similar caller error, mirroring the
// original's ScriptError.
var ErrScript = errors.New("script error")

// Engine owns the registry, generator database, signature store, and
// environment stack for one build.
type Engine struct {
	IO *ioctx.Context

	reg   *registry.Registry
	gens  *generator.DB
	signs *signature.Store

	top     path.Path
	envStk  []*env.Env
	dirsMade map[string]bool

	postInit []func() error
}

// New creates an Engine rooted at top, with os -> builtin -> config -> root
// script environments already pushed (SPEC_FULL.md §4.9's chain, minus the
// per-file level which registry.File creates lazily).
func New(io *ioctx.Context, top path.Path, signs *signature.Store, builtin map[string]env.Value, config map[string]env.Value) *Engine {
	osEnv := env.NewOS(top)

	builtinEnv := env.New(env.KindBuiltin, "builtin", top, osEnv)
	for k, v := range builtin {
		builtinEnv.Set(k, v)
	}

	configEnv := env.New(env.KindConfig, "config", top, builtinEnv)
	for k, v := range config {
		configEnv.Set(k, v)
	}

	rootScript := configEnv.PushScript("root", top)

	return &Engine{
		IO:       io,
		reg:      registry.New(top),
		gens:     generator.NewDB(),
		signs:    signs,
		top:      top,
		envStk:   []*env.Env{rootScript},
		dirsMade: map[string]bool{},
	}
}

// Registry exposes the underlying file registry, for callers (tests, the
// CLI's -p/--print-data-base) that need to enumerate it directly.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Generators exposes the generator database, for the CLI's
// -p/--print-data-base to enumerate registered extension rules.
func (e *Engine) Generators() *generator.DB { return e.gens }

// CurrentEnv returns the environment a script operation currently resolves
// names against: the top of the push/pop stack.
func (e *Engine) CurrentEnv() *env.Env {
	return e.envStk[len(e.envStk)-1]
}

// PushEnv pushes a fresh script environment scoped under the current one,
// returning it. Used when entering a nested scope that isn't a directory
// change (Subdir covers the directory case).
func (e *Engine) PushEnv(name string) *env.Env {
	next := e.CurrentEnv().PushScript(name, e.CurrentEnv().Cwd())
	e.envStk = append(e.envStk, next)
	return next
}

// PopEnv pops back to the enclosing environment. Popping the root
// environment is a no-op, mirroring the original's guard against an
// unbalanced pop_env underflowing the stack.
func (e *Engine) PopEnv() {
	if len(e.envStk) > 1 {
		e.envStk = e.envStk[:len(e.envStk)-1]
	}
}

// Subdir enters relative (resolved against the current environment's cwd),
// pushing a new script environment whose cwd is the subdirectory, and
// returns it. The caller is responsible for calling PopEnv when done
// processing that subdirectory, mirroring the original's script-level
// with-statement over subdir().
func (e *Engine) Subdir(relative string) *env.Env {
	cur := e.CurrentEnv()
	dir := cur.Cwd().Join(relative)
	next := cur.PushScript(dir.Display(), dir)
	e.envStk = append(e.envStk, next)
	return next
}

// FileFor resolves p against the current environment's cwd to its File
// node, the primary way script code refers to a path.
func (e *Engine) FileFor(p path.Path) *registry.File {
	return e.reg.FileFor(p, e.CurrentEnv().Cwd(), e.CurrentEnv())
}

// Alias registers name as an additional key resolving to f.
func (e *Engine) Alias(name string, f *registry.File) {
	e.reg.Alias(name, f)
}

// FindExact looks up name verbatim.
func (e *Engine) FindExact(name string) *registry.File {
	return e.reg.FindExact(name)
}

// Rule binds act as the recipe producing results from deps, resolving each
// path against the current environment. Returns ErrScript if any result
// already has a recipe bound (a script registering the same target twice).
func (e *Engine) Rule(results, deps []path.Path, act action.Action) ([]*registry.File, error) {
	ress := e.filesFor(results)
	ds := e.filesFor(deps)
	if _, err := recipe.NewAction(ress, ds, e.CurrentEnv(), act); err != nil {
		return nil, errors.Wrap(ErrScript, err.Error())
	}
	return ress, nil
}

// Phony marks p as a phony (non-filesystem-backed) target and returns it.
func (e *Engine) Phony(p path.Path) *registry.File {
	f := e.FileFor(p)
	f.SetPhony()
	return f
}

// Meta groups results' dependencies under a single phony, meta target with
// no action of its own. Returns ErrScript if any result already has a
// recipe bound.
func (e *Engine) Meta(results, deps []path.Path) ([]*registry.File, error) {
	ress := e.filesFor(results)
	ds := e.filesFor(deps)
	if _, err := recipe.NewMeta(ress, ds, e.CurrentEnv()); err != nil {
		return nil, errors.Wrap(ErrScript, err.Error())
	}
	return ress, nil
}

// Hidden marks p so builder output omits progress lines and dry-run/verbose
// command echo for it, matching the original's hidden() marker used on
// internal bookkeeping targets.
func (e *Engine) Hidden(p path.Path) *registry.File {
	f := e.FileFor(p)
	f.SetHidden()
	return f
}

// Goal resolves p to a File that must already have been referenced,
// marking it a build goal (always stale, top-level target for traversal).
func (e *Engine) Goal(p path.Path) (*registry.File, error) {
	f, err := e.reg.Goal(p, e.CurrentEnv().Cwd())
	if err != nil {
		return nil, errors.Wrap(ErrScript, err.Error())
	}
	f.SetGoal()
	return f, nil
}

// GenAction registers a generator producing resultExt from depExt via a
// fixed action template.
func (e *Engine) GenAction(resultExt, depExt string, build func(res, dep *registry.File) action.Action) {
	generator.GenAction(e.gens, resultExt, depExt, build)
}

// GenCommand registers a generator producing resultExt from depExt via a
// single formatted shell command line.
func (e *Engine) GenCommand(resultExt, depExt string, format func(res, dep *registry.File) string) {
	generator.GenCommand(e.gens, resultExt, depExt, format)
}

// Resolve synthesizes (if needed) the chain of generated files required to
// produce resultExt from src, in dir.
func (e *Engine) Resolve(dir path.Path, resultExt string, src *registry.File) ([]*registry.File, error) {
	return e.gens.Resolve(e.reg, e.CurrentEnv(), dir, resultExt, src)
}

// EnsureDir registers (once) a MakeDir recipe for dir if it doesn't already
// have one, returning its File. Supplements spec.md with recipe.py's
// ensure_dir: generator chains and front-end scripts alike need a directory
// target whose only job is to exist before its dependents build.
func (e *Engine) EnsureDir(dir path.Path) *registry.File {
	key := dir.Display()
	f := e.reg.FileFor(dir, e.CurrentEnv().Cwd(), e.CurrentEnv())
	if e.dirsMade[key] {
		return f
	}
	e.dirsMade[key] = true
	if f.Recipe() == nil {
		// The dirsMade/Recipe-nil guards make a duplicate-recipe conflict
		// here a bug in EnsureDir itself, not a script error, so panic
		// rather than thread an error through every EnsureDir caller.
		if _, err := recipe.NewAction([]*registry.File{f}, nil, e.CurrentEnv(), action.NewMakeDir(dir)); err != nil {
			panic(err)
		}
	}
	f.SetHidden()
	return f
}

// ImportDeps reads depFile (Makefile "target: dep dep ..." format) and
// attaches each listed dep to whatever recipe already targets the named
// file, resolving paths against the current environment's cwd. Lets a
// compiler's `-MMD`-style dependency output feed back into the graph
// without the rule that invoked the compiler needing to know the header
// list up front.
func (e *Engine) ImportDeps(depFile path.Path) error {
	return traversal.ImportDepFile(e.reg, e.CurrentEnv().Cwd(), e.CurrentEnv(), depFile)
}

// Output runs cmd through the host shell and returns its collected stdout,
// for script code that needs a value computed by an external command (a
// compiler's version string, a pkg-config query) rather than a build step.
func (e *Engine) Output(ctx context.Context, cmd string) (string, error) {
	return action.Output(ctx, cmd)
}

// AddPostInit registers fn to run once, after all script-level
// registration is complete and before goal resolution, mirroring the
// original's post_init hook list (used by front-end code that needs every
// rule already registered before it can, e.g., glob a directory).
func (e *Engine) AddPostInit(fn func() error) {
	e.postInit = append(e.postInit, fn)
}

func (e *Engine) runPostInit() error {
	for _, fn := range e.postInit {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) filesFor(paths []path.Path) []*registry.File {
	out := make([]*registry.File, 0, len(paths))
	for _, p := range paths {
		out = append(out, e.FileFor(p))
	}
	return out
}

// Run resolves each named goal, collects the files needing an update across
// all of them (each file appearing once, in dependency order), and drives
// the resulting target list through a Builder in mode. Goal names are only
// resolved here, not marked as goals. When always is true (the
// `-B`/`--always-make` flag), every reachable target is considered stale
// regardless of signature or mtime.
func (e *Engine) Run(ctx context.Context, goals []string, mode builder.Mode, showTime bool, always bool) error {
	if err := e.runPostInit(); err != nil {
		return err
	}

	var targets []*registry.File
	done := map[*registry.File]bool{}
	for _, g := range goals {
		f, err := e.reg.Goal(path.New(g), e.CurrentEnv().Cwd())
		if err != nil {
			return errors.Wrap(ErrScript, err.Error())
		}
		var err2 error
		if always {
			err2 = traversal.CollectAll(f, &targets, done)
		} else {
			err2 = traversal.CollectUpdates(f, e.top, e.signs, &targets, done)
		}
		if err2 != nil {
			return err2
		}
	}

	b := builder.New(e.IO, targets, e.top, e.signs, showTime)
	return b.Run(ctx, mode)
}
