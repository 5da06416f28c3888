package recipe

import (
	"testing"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/registry"
)

func newFile(reg *registry.Registry, root *env.Env, p string) *registry.File {
	return reg.FileFor(path.New(p), path.New("/proj"), root)
}

func TestActionRecipeBindsTargetFlag(t *testing.T) {
	reg := registry.New(path.New("/proj"))
	root := env.New(env.KindBuiltin, "builtin", path.New("/proj"), nil)
	res := newFile(reg, root, "out.o")
	dep := newFile(reg, root, "in.c")

	r, err := NewAction([]*registry.File{res}, []*registry.File{dep}, root, action.NewShell("cc -c in.c -o out.o"))
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}

	if !res.IsTarget() {
		t.Errorf("expected result file to be marked target")
	}
	if res.Recipe() != registry.Recipe(r) {
		t.Errorf("expected result file's recipe to be this ActionRecipe")
	}
	if r.Signature() != "cc -c in.c -o out.o" {
		t.Errorf("Signature() = %q", r.Signature())
	}
}

func TestDelayedRecipeComputesActionOnce(t *testing.T) {
	reg := registry.New(path.New("/proj"))
	root := env.New(env.KindBuiltin, "builtin", path.New("/proj"), nil)
	res := newFile(reg, root, "out.bin")
	dep := newFile(reg, root, "in.o")

	calls := 0
	r, err := NewDelayed([]*registry.File{res}, []*registry.File{dep}, root, func(ress, deps []*registry.File) action.Action {
		calls++
		return action.NewShell("link")
	})
	if err != nil {
		t.Fatalf("NewDelayed: %v", err)
	}

	r.Action()
	r.Action()
	if calls != 1 {
		t.Errorf("expected the generator function to run exactly once, ran %d times", calls)
	}
}

func TestMetaRecipeHasNoAction(t *testing.T) {
	reg := registry.New(path.New("/proj"))
	root := env.New(env.KindBuiltin, "builtin", path.New("/proj"), nil)
	goal := newFile(reg, root, "all")
	dep := newFile(reg, root, "out.o")

	r, err := NewMeta([]*registry.File{goal}, []*registry.File{dep}, root)
	if err != nil {
		t.Fatalf("NewMeta: %v", err)
	}

	if !goal.IsMeta() || !goal.IsPhony() {
		t.Errorf("meta recipe's result should be marked meta and phony")
	}
	if r.Signature() != "" {
		t.Errorf("meta recipe should carry no signature")
	}
}

func TestAddDepIsIdempotent(t *testing.T) {
	reg := registry.New(path.New("/proj"))
	root := env.New(env.KindBuiltin, "builtin", path.New("/proj"), nil)
	res := newFile(reg, root, "out.o")
	dep := newFile(reg, root, "in.c")

	r, err := NewAction([]*registry.File{res}, nil, root, action.Null)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	res.AddDep(dep)
	res.AddDep(dep)

	if len(r.Deps()) != 1 {
		t.Errorf("expected AddDep to be idempotent, got %d deps", len(r.Deps()))
	}
}

func TestNewActionRejectsDuplicateRecipe(t *testing.T) {
	reg := registry.New(path.New("/proj"))
	root := env.New(env.KindBuiltin, "builtin", path.New("/proj"), nil)
	res := newFile(reg, root, "out.o")

	if _, err := NewAction([]*registry.File{res}, nil, root, action.Null); err != nil {
		t.Fatalf("first NewAction: %v", err)
	}

	_, err := NewAction([]*registry.File{res}, nil, root, action.Null)
	if err == nil {
		t.Fatalf("expected a duplicate-recipe error on the second NewAction")
	}
	if _, ok := err.(*registry.ErrDuplicateRecipe); !ok {
		t.Fatalf("expected *registry.ErrDuplicateRecipe, got %T: %v", err, err)
	}
}
