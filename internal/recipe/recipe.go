// Package recipe implements the recipe model of SPEC_FULL.md §4.5: the
// binding between a set of result files, their dependencies, and the
// action that produces them.
//
// Grounded on the original implementation's recipe.py (Recipe, ActionRecipe,
// DelayedRecipe) and FunRecipe (folded into ActionRecipe here, since Go's
// action.Fun already covers "an action that's just a function" without a
// separate Recipe subtype).
package recipe

import (
	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/registry"
)

// Recipe is the common interface satisfied by every recipe kind; it is a
// superset of registry.Recipe so the registry package can depend on it
// structurally without importing this package.
type Recipe interface {
	registry.Recipe
	Action() action.Action
	Env() *env.Env
}

// base holds the fields shared by every recipe kind.
type base struct {
	ress []*registry.File
	deps []*registry.File
	env  *env.Env
	cwd  path.Path
}

func newBase(ress, deps []*registry.File, scopeEnv *env.Env) base {
	b := base{ress: ress, deps: deps, env: scopeEnv}
	if len(ress) > 0 {
		if cwdVal := ress[0].Get("cwd"); !cwdVal.IsNil() {
			b.cwd = path.New(cwdVal.AsString())
		}
	}
	if b.cwd.IsEmpty() && scopeEnv != nil {
		b.cwd = scopeEnv.Cwd()
	}
	return b
}

func (b base) Results() []*registry.File { return b.ress }
func (b base) Deps() []*registry.File    { return b.deps }
func (b base) Env() *env.Env             { return b.env }
func (b base) Cwd() path.Path            { return b.cwd }

func (b *base) AddDep(f *registry.File) {
	for _, d := range b.deps {
		if d == f {
			return
		}
	}
	b.deps = append(b.deps, f)
}

// checkNoRecipe reports the first result file that already carries a
// recipe, so a recipe constructor can fail before binding any of its
// results rather than partially binding some and not others.
func checkNoRecipe(ress []*registry.File) error {
	for _, f := range ress {
		if f.Recipe() != nil {
			return &registry.ErrDuplicateRecipe{Path: f.Path().Display()}
		}
	}
	return nil
}

// ActionRecipe binds a fixed Action to its results and dependencies,
// computed once at script-evaluation time.
type ActionRecipe struct {
	base
	act action.Action
}

// NewAction builds an ActionRecipe, binding scopeEnv's current environment
// and cwd, and registering ress as targets of act. Returns
// registry.ErrDuplicateRecipe, binding nothing, if any result already has a
// recipe.
func NewAction(ress, deps []*registry.File, scopeEnv *env.Env, act action.Action) (*ActionRecipe, error) {
	if err := checkNoRecipe(ress); err != nil {
		return nil, err
	}
	r := &ActionRecipe{base: newBase(ress, deps, scopeEnv), act: act}
	for _, f := range ress {
		f.SetRecipe(r)
	}
	return r, nil
}

func (r *ActionRecipe) Action() action.Action { return r.act }
func (r *ActionRecipe) Signature() string     { return r.act.Signature() }
func (r *ActionRecipe) Commands() []string {
	var cmds []string
	r.act.Commands(&cmds)
	return cmds
}

// DelayedRecipe extracts its action from a function only the first time
// it's needed, just before being run, letting script-side code compute
// the command line from the results/deps it will actually be run on.
type DelayedRecipe struct {
	base
	fn  func(ress, deps []*registry.File) action.Action
	act action.Action
}

// NewDelayed builds a DelayedRecipe whose action is produced by fn on first
// use. Returns registry.ErrDuplicateRecipe, binding nothing, if any result
// already has a recipe.
func NewDelayed(ress, deps []*registry.File, scopeEnv *env.Env, fn func(ress, deps []*registry.File) action.Action) (*DelayedRecipe, error) {
	if err := checkNoRecipe(ress); err != nil {
		return nil, err
	}
	r := &DelayedRecipe{base: newBase(ress, deps, scopeEnv), fn: fn}
	for _, f := range ress {
		f.SetRecipe(r)
	}
	return r, nil
}

func (r *DelayedRecipe) Action() action.Action {
	if r.act == nil {
		r.act = r.fn(r.ress, r.deps)
	}
	return r.act
}

func (r *DelayedRecipe) Signature() string { return r.Action().Signature() }
func (r *DelayedRecipe) Commands() []string {
	var cmds []string
	r.Action().Commands(&cmds)
	return cmds
}

// MetaRecipe groups other recipes' results as dependencies with no action
// of its own; its result file is phony and meta (see registry.File.SetMeta),
// so it is only "updated" when one of its dependencies is.
type MetaRecipe struct {
	base
}

// NewMeta builds a MetaRecipe over the given dependencies. Returns
// registry.ErrDuplicateRecipe, binding nothing, if any result already has a
// recipe.
func NewMeta(ress, deps []*registry.File, scopeEnv *env.Env) (*MetaRecipe, error) {
	if err := checkNoRecipe(ress); err != nil {
		return nil, err
	}
	r := &MetaRecipe{base: newBase(ress, deps, scopeEnv)}
	for _, f := range ress {
		f.SetRecipe(r)
		f.SetMeta()
	}
	return r, nil
}

func (r *MetaRecipe) Action() action.Action { return action.Null }
func (r *MetaRecipe) Signature() string     { return "" }
func (r *MetaRecipe) Commands() []string    { return nil }
