package action

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/path"
)

func newCtx() (*ioctx.Context, *bytes.Buffer, *bytes.Buffer) {
	var out, errBuf bytes.Buffer
	return ioctx.New(&out, &errBuf, slog.New(slog.NewTextHandler(os.Stderr, nil))), &out, &errBuf
}

func TestShellRunsAndCapturesOutput(t *testing.T) {
	io, out, _ := newCtx()
	a := NewShell("echo hello")
	if err := a.Execute(context.Background(), io); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestShellQuietSuppressesCommandEcho(t *testing.T) {
	io, out, _ := newCtx()
	a := NewShell("@echo hi")
	if err := a.Execute(context.Background(), io); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "hi\n" {
		t.Errorf("expected only the command's own output, got %q", out.String())
	}
	if !io.CommandEchoEnabled() {
		t.Errorf("command echo should be restored after quiet shell action")
	}
}

func TestShellFailureWrapsErrActionFailed(t *testing.T) {
	io, _, _ := newCtx()
	a := NewShell("exit 3")
	err := a.Execute(context.Background(), io)
	if err == nil {
		t.Fatalf("expected error for nonzero exit")
	}
	if !errors.Is(err, ErrActionFailed) {
		t.Errorf("expected the error to wrap ErrActionFailed, got %v", err)
	}
}

func TestGroupStopsAtFirstFailure(t *testing.T) {
	io, out, _ := newCtx()
	g := NewGroup(NewShell("echo one"), NewShell("exit 1"), NewShell("echo two"))
	err := g.Execute(context.Background(), io)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if out.String() != "one\n" {
		t.Errorf("expected group to stop after first failing action, got %q", out.String())
	}
}

func TestFunSignatureIsEmpty(t *testing.T) {
	f := NewFun(func(context.Context, *ioctx.Context) error { return nil })
	if f.Signature() != "" {
		t.Errorf("Fun actions must never carry a signature")
	}
}

func TestHiddenSuppressesCommandsAndSignature(t *testing.T) {
	h := NewHidden(NewShell("echo secret"))
	var cmds []string
	h.Commands(&cmds)
	if len(cmds) != 0 {
		t.Errorf("Hidden should contribute no commands, got %v", cmds)
	}
	if h.Signature() != "" {
		t.Errorf("Hidden should contribute no signature")
	}
}

func TestMakeActionsArity(t *testing.T) {
	if MakeActions() != Null {
		t.Errorf("zero actions should yield Null")
	}
	single := NewShell("echo x")
	if MakeActions(single) != Action(single) {
		t.Errorf("one action should be returned unchanged")
	}
	if _, ok := MakeActions(single, NewShell("echo y")).(*Group); !ok {
		t.Errorf("multiple actions should be grouped")
	}
}

func TestMakeDirAndMakeFile(t *testing.T) {
	dir := t.TempDir()
	io, _, _ := newCtx()

	target := path.New(dir).Join("a", "b")
	if err := NewMakeDir(target).Execute(context.Background(), io); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if !target.IsDir() {
		t.Errorf("expected directory to be created")
	}

	file := target.Join("f.txt")
	if err := NewMakeFile(file, "hello").Execute(context.Background(), io); err != nil {
		t.Fatalf("MakeFile: %v", err)
	}
	data, err := os.ReadFile(file.String())
	if err != nil || string(data) != "hello" {
		t.Errorf("MakeFile contents = %q, err = %v", data, err)
	}
}

func TestGrepFiltersOutput(t *testing.T) {
	io, out, _ := newCtx()
	g, err := NewGrep("keep", NewShell("printf 'keep me\\ndrop me\\n'"), true, false)
	if err != nil {
		t.Fatalf("NewGrep: %v", err)
	}
	if err := g.Execute(context.Background(), io); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.String() != "keep me\n" {
		t.Errorf("grep output = %q", out.String())
	}
}

func TestShellCommandsDisplayNormalizesWhitespace(t *testing.T) {
	s := NewShell("cc   -c  'in file.c'   -o out.o")
	var cmds []string
	s.Commands(&cmds)
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %v", cmds)
	}
	if cmds[0] != "cc -c 'in file.c' -o out.o" {
		t.Errorf("unexpected normalized command: %q", cmds[0])
	}
}

func TestOutputCollectsStdout(t *testing.T) {
	got, err := Output(context.Background(), "printf 'a\\nb\\n'")
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if got != "a b " {
		t.Errorf("Output = %q", got)
	}
}

func TestOutputWrapsFailureExitCode(t *testing.T) {
	_, err := Output(context.Background(), "exit 3")
	if err == nil {
		t.Fatalf("expected an error for a non-zero exit")
	}
}
