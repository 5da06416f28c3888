package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/maatbuild/maat/internal/action"
	"github.com/maatbuild/maat/internal/builder"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/signature"
)

func newTestEngine(t *testing.T) (*Engine, path.Path) {
	t.Helper()
	top := path.New(t.TempDir())
	signs := signature.New(filepath.Join(top.String(), ".signs"))
	if err := signs.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	io := ioctx.Default()
	return New(io, top, signs, nil, nil), top
}

func TestRuleBuildsGoalThroughRun(t *testing.T) {
	e, top := newTestEngine(t)
	out := top.Join("out.txt")

	if _, err := e.Rule([]path.Path{out}, nil, action.NewShell("touch "+out.String())); err != nil {
		t.Fatalf("Rule: %v", err)
	}
	if _, err := e.Goal(out); err != nil {
		t.Fatalf("Goal: %v", err)
	}

	if err := e.Run(context.Background(), []string{out.Display()}, builder.Sequential, false, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Exists() {
		t.Errorf("expected %s to be created", out.Display())
	}
}

func TestRuleRejectsDuplicateTarget(t *testing.T) {
	e, top := newTestEngine(t)
	out := top.Join("out.txt")

	if _, err := e.Rule([]path.Path{out}, nil, action.Null); err != nil {
		t.Fatalf("first Rule: %v", err)
	}

	_, err := e.Rule([]path.Path{out}, nil, action.Null)
	if err == nil {
		t.Fatalf("expected ErrScript on a second Rule over the same target")
	}
	if !errors.Is(err, ErrScript) {
		t.Errorf("expected the error to wrap ErrScript, got %v", err)
	}
}

func TestGoalOnUnreferencedPathFails(t *testing.T) {
	e, top := newTestEngine(t)
	if _, err := e.Goal(top.Join("never-referenced")); err == nil {
		t.Errorf("expected Goal to fail for an unreferenced path")
	}
}

func TestPushPopEnvIsolatesVariables(t *testing.T) {
	e, _ := newTestEngine(t)
	e.CurrentEnv().Set("X", env.String("outer"))

	e.PushEnv("inner")
	e.CurrentEnv().Set("X", env.String("inner"))
	if e.CurrentEnv().Get("X").AsString() != "inner" {
		t.Errorf("expected inner scope to see its own X")
	}

	e.PopEnv()
	if e.CurrentEnv().Get("X").AsString() != "outer" {
		t.Errorf("expected popping back to outer scope's X")
	}
}

func TestSubdirChangesCwd(t *testing.T) {
	e, top := newTestEngine(t)
	os.MkdirAll(filepath.Join(top.String(), "sub"), 0o755)

	sub := e.Subdir("sub")
	if sub.Cwd().Display() != top.Join("sub").Display() {
		t.Errorf("expected subdir cwd %s, got %s", top.Join("sub").Display(), sub.Cwd().Display())
	}
}

func TestEnsureDirRegistersOnce(t *testing.T) {
	e, top := newTestEngine(t)
	dir := top.Join("built")

	f1 := e.EnsureDir(dir)
	f2 := e.EnsureDir(dir)
	if f1 != f2 {
		t.Errorf("expected EnsureDir to return the same file both times")
	}
	if f1.Recipe() == nil {
		t.Errorf("expected EnsureDir to bind a recipe")
	}
}

func TestImportDepsAttachesToExistingRule(t *testing.T) {
	e, top := newTestEngine(t)
	out := top.Join("out.o")
	if _, err := e.Rule([]path.Path{out}, nil, action.NewShell("cc -c in.c -o out.o")); err != nil {
		t.Fatalf("Rule: %v", err)
	}

	depFile := top.Join("out.d")
	if err := os.WriteFile(depFile.String(), []byte("out.o: in.c in.h\n"), 0o644); err != nil {
		t.Fatalf("write dep file: %v", err)
	}

	if err := e.ImportDeps(depFile); err != nil {
		t.Fatalf("ImportDeps: %v", err)
	}

	f := e.FileFor(out)
	if len(f.Recipe().Deps()) != 2 {
		t.Errorf("expected 2 imported deps, got %v", f.Recipe().Deps())
	}
}

func TestEngineOutputCollectsStdout(t *testing.T) {
	e, _ := newTestEngine(t)
	got, err := e.Output(context.Background(), "echo hi")
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if got != "hi " {
		t.Errorf("Output = %q", got)
	}
}

func TestAddPostInitRunsBeforeGoalResolution(t *testing.T) {
	e, top := newTestEngine(t)
	ran := false
	e.AddPostInit(func() error {
		ran = true
		out := top.Join("late.txt")
		if _, err := e.Rule([]path.Path{out}, nil, action.NewShell("touch "+out.String())); err != nil {
			return err
		}
		_, err := e.Goal(out)
		return err
	})

	late := top.Join("late.txt")
	if err := e.Run(context.Background(), []string{late.Display()}, builder.Sequential, false, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Errorf("expected post-init hook to run")
	}
}
