// Package generator implements the extension/generator chain resolution of
// SPEC_FULL.md §4.3: a forward-map graph over file extensions where each
// edge knows how to produce one extension from another, and Resolve walks
// that graph to synthesize the intermediate recipes needed to reach a
// requested extension from a given source file.
//
// Grounded on the original implementation's recipe.py (Ext, Gen, FunGen,
// ActionGen, get_ext, gen()): the per-extension gens map plus backward-link
// propagation is ported as-is, since it is the one piece of the original
// with no natural idiomatic Go restructuring that wouldn't change its
// resolution order.
package generator

import (
	"fmt"
	"sort"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/recipe"
	"github.com/maatbuild/maat/internal/registry"
)

// Gen produces a recipe.Recipe that builds a file of extension Res from a
// file of extension Dep.
type Gen interface {
	ResultExt() string
	DepExt() string
	Generate(reg *registry.Registry, scopeEnv *env.Env, res, dep *registry.File) (recipe.Recipe, error)
}

// Ext records, for every extension reachable from this one (directly or
// through any number of intermediate steps), the first generator to apply
// on the way there, plus the generators that produce this extension from
// another one.
type Ext struct {
	ext   string
	gens  map[string]Gen // result ext -> first generator to apply from this ext
	backs []Gen          // generators whose result is this ext
}

// DB is the extension database: SPEC_FULL.md's "generator registration"
// surface (GenAction/GenCommand) plus the chain-walking Resolve used by
// file resolution when a requested extension has no direct rule.
type DB struct {
	exts map[string]*Ext
}

// NewDB creates an empty extension database.
func NewDB() *DB {
	return &DB{exts: map[string]*Ext{}}
}

// Edge is one resolvable "can produce resultExt from ext" mapping, for
// display purposes (see Edges).
type Edge struct {
	Ext, ResultExt string
}

// Edges enumerates every ext -> resultExt mapping currently known to the
// database, in sorted order, matching the original's print_db which walks
// every Ext's .gens table to print the generator database.
func (d *DB) Edges() []Edge {
	exts := make([]string, 0, len(d.exts))
	for e := range d.exts {
		exts = append(exts, e)
	}
	sort.Strings(exts)

	var edges []Edge
	for _, e := range exts {
		results := make([]string, 0, len(d.exts[e].gens))
		for r := range d.exts[e].gens {
			results = append(results, r)
		}
		sort.Strings(results)
		for _, r := range results {
			edges = append(edges, Edge{Ext: e, ResultExt: r})
		}
	}
	return edges
}

func (d *DB) extFor(ext string) *Ext {
	if e, ok := d.exts[ext]; ok {
		return e
	}
	e := &Ext{ext: ext, gens: map[string]Gen{}}
	d.exts[ext] = e
	return e
}

// Register adds g as a way to produce g.ResultExt() from g.DepExt(),
// propagating the new edge three ways, mirroring Gen.__init__: backward to
// every extension that could already reach g.DepExt() (the back link),
// forward so g.DepExt() itself can now reach g.ResultExt() (the forward
// link), and forward again so g.DepExt() inherits every extension
// g.ResultExt() could already reach, since that whole chain is now also
// reachable through g. Without this third step, chain resolution becomes
// dependent on registration order: when g's result extension already leads
// further down a chain, g.DepExt() would never learn about that chain.
func (d *DB) Register(g Gen) {
	res := d.extFor(g.ResultExt())
	dep := d.extFor(g.DepExt())

	res.backs = append(res.backs, g)
	d.update(dep, g.ResultExt(), g)

	for e := range res.gens {
		if _, ok := dep.gens[e]; !ok {
			d.update(dep, e, g)
		}
	}
}

// update records that ext can reach resultExt via g, and extends that
// knowledge to anything that feeds into ext, mirroring Ext.update's
// recursive walk over self.backs.
func (d *DB) update(ext *Ext, resultExt string, g Gen) {
	ext.gens[resultExt] = g
	for _, back := range ext.backs {
		d.update(d.extFor(back.DepExt()), resultExt, back)
	}
}

// ErrNoChain is returned when no registered generator chain can produce the
// requested extension from the given source extension.
type ErrNoChain struct {
	Result, Source string
}

func (e *ErrNoChain) Error() string {
	return fmt.Sprintf("don't know how to build %q from %q", e.Result, e.Source)
}

// Resolve synthesizes the chain of recipes needed to produce a file with
// extension resultExt from srcPath (in dir, a build-output directory),
// returning the path of each intermediate file in order, the last one
// carrying resultExt.
func (d *DB) Resolve(reg *registry.Registry, scopeEnv *env.Env, dir path.Path, resultExt string, src *registry.File) ([]*registry.File, error) {
	base := src.Path().Base()
	depExt := src.Path().Ext()
	kernel := path.New(base[:len(base)-len(depExt)])

	ext, ok := d.exts[depExt]
	if !ok {
		return nil, &ErrNoChain{Result: resultExt, Source: depExt}
	}

	var results []*registry.File
	prev := src
	cur := ext
	for cur.ext != resultExt {
		g, ok := cur.gens[resultExt]
		if !ok {
			return nil, &ErrNoChain{Result: resultExt, Source: depExt}
		}
		nextPath := dir.Join(kernel.Display()).AppendExt(g.ResultExt())
		next := reg.FileFor(nextPath, dir, scopeEnv)
		// Resolving several extensions off the same source can walk through
		// the same intermediate file more than once; only synthesize a
		// recipe for it the first time, mirroring EnsureDir's reuse guard.
		if next.Recipe() == nil {
			if _, err := g.Generate(reg, scopeEnv, next, prev); err != nil {
				return nil, err
			}
		}
		results = append(results, next)
		prev = next
		cur = d.extFor(g.ResultExt())
	}
	return results, nil
}

// funGen is a generator producing its recipe via a plain function: the
// result action runs fn(res, dep) to completion.
type funGen struct {
	resultExt, depExt string
	fn                func(ress, deps []*registry.File) action.Action
}

// NewFunGen builds (without registering) a generator from depExt to
// resultExt that builds its
// action lazily by calling fn with the singleton result/dep slices, the way
// ActionGen+DelayedRecipe do in the original.
func NewFunGen(resultExt, depExt string, fn func(ress, deps []*registry.File) action.Action) Gen {
	return &funGen{resultExt: resultExt, depExt: depExt, fn: fn}
}

func (g *funGen) ResultExt() string { return g.resultExt }
func (g *funGen) DepExt() string    { return g.depExt }

func (g *funGen) Generate(_ *registry.Registry, scopeEnv *env.Env, res, dep *registry.File) (recipe.Recipe, error) {
	return recipe.NewDelayed(
		[]*registry.File{res}, []*registry.File{dep}, scopeEnv,
		func(ress, deps []*registry.File) action.Action {
			return g.fn(ress, deps)
		},
	)
}

// GenAction registers a generator described directly by a fixed action
// template function, matching SPEC_FULL.md's GenAction constructor.
func GenAction(db *DB, resultExt, depExt string, build func(res, dep *registry.File) action.Action) {
	db.Register(NewFunGen(resultExt, depExt, func(ress, deps []*registry.File) action.Action {
		return build(ress[0], deps[0])
	}))
}

// GenCommand registers a generator whose action is a single shell command
// line produced by a format function, matching SPEC_FULL.md's GenCommand
// constructor (the common case: "$(CC) -c $(dep) -o $(res)").
func GenCommand(db *DB, resultExt, depExt string, format func(res, dep *registry.File) string) {
	GenAction(db, resultExt, depExt, func(res, dep *registry.File) action.Action {
		return action.NewInvoke(format(res, dep))
	})
}
