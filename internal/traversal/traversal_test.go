package traversal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/recipe"
	"github.com/maatbuild/maat/internal/registry"
	"github.com/maatbuild/maat/internal/signature"
)

func newTestDB(t *testing.T) (*registry.Registry, *env.Env, path.Path, *signature.Store) {
	dir := t.TempDir()
	top := path.New(dir)
	reg := registry.New(top)
	root := env.New(env.KindBuiltin, "builtin", top, nil)
	signs := signature.New(filepath.Join(dir, "signs"))
	return reg, root, top, signs
}

func writeFile(t *testing.T, p path.Path, content string) {
	t.Helper()
	if err := os.WriteFile(p.String(), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p.Display(), err)
	}
}

func TestGoalAlwaysNeedsUpdate(t *testing.T) {
	reg, root, top, signs := newTestDB(t)
	goal := reg.FileFor(path.New("all"), top, root)
	goal.SetGoal()

	ok, err := NeedsUpdate(goal, top, signs)
	if err != nil || !ok {
		t.Errorf("expected goal to always need update, got %v, %v", ok, err)
	}
}

func TestMissingSourceWithNoRecipeIsError(t *testing.T) {
	reg, root, top, signs := newTestDB(t)
	src := reg.FileFor(path.New("missing.c"), top, root)

	_, err := NeedsUpdate(src, top, signs)
	if err == nil {
		t.Fatalf("expected ErrMissingInput")
	}
	if _, ok := err.(*ErrMissingInput); !ok {
		t.Fatalf("expected *ErrMissingInput, got %T", err)
	}
}

func TestUpToDateTargetNeedsNoUpdate(t *testing.T) {
	reg, root, top, signs := newTestDB(t)

	src := reg.FileFor(path.New("in.c"), top, root)
	writeFile(t, src.Path(), "int main(){}")

	out := reg.FileFor(path.New("out.o"), top, root)
	recipe.NewAction([]*registry.File{out}, []*registry.File{src}, root, action.NewShell("cc -c in.c -o out.o"))
	writeFile(t, out.Path(), "object")

	// make out strictly younger than src
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(out.Path().String(), future, future); err != nil {
		t.Fatal(err)
	}

	signs.Test(out.Path().Display(), out.Recipe().Signature())

	ok, err := NeedsUpdate(out, top, signs)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if ok {
		t.Errorf("expected up-to-date target to not need update")
	}
}

func TestSignatureChangeForcesUpdate(t *testing.T) {
	reg, root, top, signs := newTestDB(t)

	src := reg.FileFor(path.New("in.c"), top, root)
	writeFile(t, src.Path(), "int main(){}")

	out := reg.FileFor(path.New("out.o"), top, root)
	recipe.NewAction([]*registry.File{out}, []*registry.File{src}, root, action.NewShell("cc -c in.c -o out.o -O2"))
	writeFile(t, out.Path(), "object")
	future := time.Now().Add(time.Hour)
	os.Chtimes(out.Path().String(), future, future)

	// record a stale signature for a different command line
	signs.Test(out.Path().Display(), "cc -c in.c -o out.o")

	ok, err := NeedsUpdate(out, top, signs)
	if err != nil {
		t.Fatalf("NeedsUpdate: %v", err)
	}
	if !ok {
		t.Errorf("expected a changed action signature to force an update")
	}
}

func TestCollectUpdatesOrdersDepsBeforeDependents(t *testing.T) {
	reg, root, top, signs := newTestDB(t)

	leaf := reg.FileFor(path.New("leaf.c"), top, root)
	writeFile(t, leaf.Path(), "x")

	mid := reg.FileFor(path.New("mid.o"), top, root)
	recipe.NewAction([]*registry.File{mid}, []*registry.File{leaf}, root, action.NewShell("cc -c leaf.c -o mid.o"))

	goal := reg.FileFor(path.New("all"), top, root)
	goal.SetGoal()
	recipe.NewMeta([]*registry.File{goal}, []*registry.File{mid}, root)

	var targets []*registry.File
	if err := CollectUpdates(goal, top, signs, &targets, nil); err != nil {
		t.Fatalf("CollectUpdates: %v", err)
	}

	if len(targets) != 2 {
		t.Fatalf("expected 2 stale targets, got %d: %v", len(targets), targets)
	}
	if targets[0] != mid {
		t.Errorf("expected dependency mid.o to come before goal")
	}
}

func TestCollectUpdatesDetectsCycle(t *testing.T) {
	reg, root, top, signs := newTestDB(t)

	a := reg.FileFor(path.New("a"), top, root)
	b := reg.FileFor(path.New("b"), top, root)
	if _, err := recipe.NewAction([]*registry.File{a}, []*registry.File{b}, root, action.Null); err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	if _, err := recipe.NewAction([]*registry.File{b}, []*registry.File{a}, root, action.Null); err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	a.SetPhony()
	b.SetPhony()

	var targets []*registry.File
	err := CollectUpdates(a, top, signs, &targets, nil)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	if _, ok := err.(*ErrCycle); !ok {
		t.Fatalf("expected *ErrCycle, got %T: %v", err, err)
	}
}

func TestCollectAllIgnoresUpToDateSignature(t *testing.T) {
	reg, root, top, signs := newTestDB(t)

	leaf := reg.FileFor(path.New("leaf.c"), top, root)
	writeFile(t, leaf.Path(), "leaf")

	out := reg.FileFor(path.New("out.o"), top, root)
	writeFile(t, out.Path(), "built")
	recipe.NewAction([]*registry.File{out}, []*registry.File{leaf}, root, action.NewShell("cc -c leaf.c -o out.o"))
	signs.Test(out.Path().Display(), "cc -c leaf.c -o out.o")

	var targets []*registry.File
	if err := CollectUpdates(out, top, signs, &targets, nil); err != nil {
		t.Fatalf("CollectUpdates: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected nothing stale, got %v", targets)
	}

	targets = nil
	if err := CollectAll(out, &targets, nil); err != nil {
		t.Fatalf("CollectAll: %v", err)
	}
	if len(targets) != 1 || targets[0] != out {
		t.Fatalf("expected CollectAll to force out.o regardless of signature, got %v", targets)
	}
}

func TestImportDepFileAddsDepsToExistingRecipe(t *testing.T) {
	reg, root, top, _ := newTestDB(t)

	out := reg.FileFor(path.New("out.o"), top, root)
	recipe.NewAction([]*registry.File{out}, nil, root, action.NewShell("cc -c in.c -o out.o"))

	depFile := filepath.Join(top.String(), "out.d")
	writeFile(t, path.New(depFile), "out.o: in.c in.h\n")

	if err := ImportDepFile(reg, top, root, path.New(depFile)); err != nil {
		t.Fatalf("ImportDepFile: %v", err)
	}

	deps := out.Recipe().Deps()
	if len(deps) != 2 {
		t.Fatalf("expected 2 deps imported, got %d: %v", len(deps), deps)
	}
}

func TestImportDepFileSkipsTargetWithNoRecipe(t *testing.T) {
	reg, root, top, _ := newTestDB(t)

	depFile := filepath.Join(top.String(), "orphan.d")
	writeFile(t, path.New(depFile), "orphan.o: in.c\n")

	if err := ImportDepFile(reg, top, root, path.New(depFile)); err != nil {
		t.Fatalf("ImportDepFile: %v", err)
	}

	orphan := reg.FindExact(top.Join("orphan.o").Display())
	if orphan != nil && orphan.Recipe() != nil {
		t.Errorf("expected no recipe bound to an unreferenced target")
	}
}

func TestImportDepFileMissingFileIsNotAnError(t *testing.T) {
	reg, root, top, _ := newTestDB(t)
	if err := ImportDepFile(reg, top, root, top.Join("missing.d")); err != nil {
		t.Errorf("expected a missing dep file to be silently ignored, got %v", err)
	}
}
