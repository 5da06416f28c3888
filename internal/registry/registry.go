// Package registry implements the file database described by
// SPEC_FULL.md §4.2: an interned set of File nodes keyed by canonical path,
// carrying the target/phony/meta/hidden/sticky/goal flags and the actual-
// path redirection used for out-of-tree builds.
//
// This is a direct port of the original implementation's recipe.py File
// class and module-level file_db/add_alias/get_file/get_goal/find_exact
// functions, minus the signature-store coupling (needs_update moved to
// package traversal, which already depends on both registry and signature;
// keeping registry free of that dependency keeps the data model a leaf
// package).
package registry

import (
	"fmt"
	"sync"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
)

// Recipe is the minimal view the registry needs of a recipe bound to a
// File. The recipe package provides the concrete implementations
// (ActionRecipe, DelayedRecipe, MetaRecipe); registry only needs to walk
// dependencies and read results to support traversal and display.
type Recipe interface {
	Results() []*File
	Deps() []*File
	AddDep(f *File)
	Signature() string
	Commands() []string
	Cwd() path.Path
	Action() action.Action
}

// File is a node in the build graph: either a real filesystem path, a
// phony goal, or a meta rule grouping other rules.
type File struct {
	*env.Env

	path   path.Path
	recipe Recipe

	mu         sync.Mutex
	actualPath path.Path
	hasActual  bool

	sticky bool
	phony  bool
	meta   bool
	hidden bool
	target bool
	goal   bool
}

// newFile constructs a File scoped under parent at the given path. It does
// not register the file in any Registry; callers use Registry.FileFor.
func newFile(p path.Path, parent *env.Env) *File {
	return &File{
		Env:  env.New(env.KindFile, p.Display(), p.Parent(), parent),
		path: p,
	}
}

// Path returns the nominal (pre-redirection) path of the file.
func (f *File) Path() path.Path { return f.path }

// Recipe returns the recipe bound to this file, or nil if none.
func (f *File) Recipe() Recipe { return f.recipe }

// ErrDuplicateRecipe is returned by SetRecipe when a recipe is already
// bound to the file: spec.md's invariant that the recipe pointer is set
// exactly once per file, generalized from recipe.py's phony() duplicate-
// goal check ("a goal named '%s' already exist!") to every result file.
type ErrDuplicateRecipe struct {
	Path string
}

func (e *ErrDuplicateRecipe) Error() string {
	return fmt.Sprintf("result %s already has a recipe", e.Path)
}

// SetRecipe binds r as the recipe producing this file and marks it a
// target, mirroring Recipe.__init__'s "for f in ress: f.recipe = self;
// f.is_target = True". Returns ErrDuplicateRecipe without making any
// change if a recipe is already bound.
func (f *File) SetRecipe(r Recipe) error {
	if f.recipe != nil {
		return &ErrDuplicateRecipe{Path: f.path.Display()}
	}
	f.recipe = r
	f.target = true
	return nil
}

func (f *File) SetPhony()  { f.phony = true }
func (f *File) SetMeta()   { f.meta = true; f.phony = true }
func (f *File) SetHidden() { f.hidden = true }
func (f *File) SetSticky() { f.sticky = true }
func (f *File) SetGoal()   { f.goal = true; f.phony = true }

func (f *File) IsPhony() bool  { return f.phony }
func (f *File) IsMeta() bool   { return f.meta }
func (f *File) IsHidden() bool { return f.hidden }
func (f *File) IsSticky() bool { return f.sticky }
func (f *File) IsTarget() bool { return f.target }
func (f *File) IsGoal() bool   { return f.goal }

// Actual returns the path to build, applying the BPATH build-root
// redirection for target files: a target file whose nominal path is under
// the top directory is rehomed under BPATH, preserving its relative
// position.
func (f *File) Actual(top path.Path) path.Path {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasActual {
		return f.actualPath
	}
	actual := f.path
	if f.target {
		bpath := f.Get("BPATH")
		if !bpath.IsNil() {
			base := top.Join(bpath.AsString())
			if rel, ok := f.path.RelativeTo(top); ok {
				actual = base.Join(rel.Display())
			} else {
				actual = base.Join(f.path.Display())
			}
		}
	}
	f.actualPath = actual
	f.hasActual = true
	return actual
}

// AddDep appends dep to the recipe building this file.
func (f *File) AddDep(dep *File) {
	if f.recipe != nil {
		f.recipe.AddDep(dep)
	}
}

// String renders the file the way it should appear in logs: its actual
// path (redirected through top) relative to cur when possible, else its
// absolute/normalized form.
func (f *File) String(top, cur path.Path) string {
	actual := f.Actual(top)
	if rel, ok := actual.RelativeTo(cur); ok {
		return rel.Display()
	}
	return actual.Display()
}

// Registry is the interned file database (SPEC_FULL.md §4.2). Generator
// resolution lives in package generator, which obtains its intermediate
// files through FileFor.
type Registry struct {
	mu   sync.Mutex
	byID map[string]*File
	top  path.Path
}

// New creates an empty Registry rooted at top.
func New(top path.Path) *Registry {
	return &Registry{byID: map[string]*File{}, top: top}
}

// Top returns the top-level directory this registry is rooted at.
func (r *Registry) Top() path.Path { return r.top }

// FileFor resolves p (localizing it against cur if relative) to its File
// node, creating one scoped under parentEnv if this is the first reference.
func (r *Registry) FileFor(p path.Path, cur path.Path, parentEnv *env.Env) *File {
	localized := p
	if !p.IsAbs() {
		localized = cur.Join(p.Display())
	}
	key := localized.Display()

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.byID[key]; ok {
		return f
	}
	f := newFile(localized, parentEnv)
	r.byID[key] = f
	return f
}

// Alias registers name as an additional key resolving to f, mirroring
// add_alias. The alias does not become the file's display name.
func (r *Registry) Alias(name string, f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[name] = f
}

// FindExact looks up name verbatim (no localization), returning nil if
// absent.
func (r *Registry) FindExact(name string) *File {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[name]
}

// Goal resolves p exactly as FileFor does, but returns an error if the file
// was never referenced (mirrors get_goal's ErrScript on a missing goal).
func (r *Registry) Goal(p path.Path, cur path.Path) (*File, error) {
	localized := p
	if !p.IsAbs() {
		localized = cur.Join(p.Display())
	}
	key := localized.Display()

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.byID[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("goal %s does not exist", p.Display())
}

// All returns every registered file, in no particular order.
func (r *Registry) All() []*File {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*File, 0, len(r.byID))
	seen := map[*File]bool{}
	for _, f := range r.byID {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
