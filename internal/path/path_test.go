package path

import "testing"

func TestNewNormalizes(t *testing.T) {
	cases := map[string]string{
		"a/b/../c":  "a/c",
		"./a/b":     "a/b",
		"a//b":      "a/b",
		"":          "",
	}
	for in, want := range cases {
		if got := New(in).Display(); got != want {
			t.Errorf("New(%q).Display() = %q, want %q", in, got, want)
		}
	}
}

func TestAppendExt(t *testing.T) {
	p := New("build/main")
	if got := p.AppendExt(".o").Display(); got != "build/main.o" {
		t.Errorf("AppendExt(.o) = %q", got)
	}
	if got := p.AppendExt("o").Display(); got != "build/main.o" {
		t.Errorf("AppendExt(o) = %q", got)
	}
}

func TestWithExt(t *testing.T) {
	p := New("src/main.c")
	if got := p.WithExt(".o").Display(); got != "src/main.o" {
		t.Errorf("WithExt(.o) = %q", got)
	}
	p2 := New("src/main")
	if got := p2.WithExt(".o").Display(); got != "src/main.o" {
		t.Errorf("WithExt on extensionless = %q", got)
	}
}

func TestRelativeTo(t *testing.T) {
	base := New("/home/user/proj")
	p := New("/home/user/proj/src/main.c")
	rel, ok := p.RelativeTo(base)
	if !ok || rel.Display() != "src/main.c" {
		t.Errorf("RelativeTo = %q, %v", rel.Display(), ok)
	}

	outside := New("/home/other/x")
	if _, ok := outside.RelativeTo(base); ok {
		t.Errorf("expected RelativeTo to fail for path outside base")
	}
}

func TestPrefixedBy(t *testing.T) {
	base := New("/a/b")
	if !New("/a/b/c").PrefixedBy(base) {
		t.Errorf("expected /a/b/c to be prefixed by /a/b")
	}
	if New("/a/x").PrefixedBy(base) {
		t.Errorf("expected /a/x not to be prefixed by /a/b")
	}
}

func TestEqual(t *testing.T) {
	if !New("a/./b").Equal(New("a/b")) {
		t.Errorf("expected normalized equality")
	}
}

func TestBaseParentExt(t *testing.T) {
	p := New("a/b/c.txt")
	if p.Base() != "c.txt" {
		t.Errorf("Base() = %q", p.Base())
	}
	if p.Parent().Display() != "a/b" {
		t.Errorf("Parent() = %q", p.Parent().Display())
	}
	if p.Ext() != ".txt" {
		t.Errorf("Ext() = %q", p.Ext())
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Path{}).IsEmpty() {
		t.Errorf("zero value should be empty")
	}
	if New("a").IsEmpty() {
		t.Errorf("non-empty path reported empty")
	}
}
