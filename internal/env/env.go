// Package env implements the hierarchical environment chain described by
// SPEC_FULL.md §4.9: OS environment at the root, a builtin map, a config
// layer, and finally per-script/per-file maps, each falling back to its
// parent on a miss.
//
// This mirrors the parent-chain class hierarchy of the original
// implementation's env.py (Env / ParentEnv / MapEnv / ScriptEnv / OSEnv)
// with a single Go type parameterized by a Kind and a backing store, rather
// than a class per level.
package env

import (
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/maatbuild/maat/internal/path"
)

// Value is the tagged union stored in an environment: a string, a path, an
// int, a bool, or a list of Values. Lists may nest one level (see Append).
type Value struct {
	kind  valueKind
	str   string
	num   int64
	boo   bool
	pth   path.Path
	list  []Value
}

type valueKind int

const (
	kindNil valueKind = iota
	kindString
	kindInt
	kindBool
	kindPath
	kindList
)

// Nil is the zero Value, representing "undefined".
var Nil = Value{}

// IsNil reports whether v carries no value.
func (v Value) IsNil() bool { return v.kind == kindNil }

func String(s string) Value { return Value{kind: kindString, str: s} }
func Int(n int64) Value     { return Value{kind: kindInt, num: n} }
func Bool(b bool) Value     { return Value{kind: kindBool, boo: b} }
func PathValue(p path.Path) Value { return Value{kind: kindPath, pth: p} }
func List(vs ...Value) Value { return Value{kind: kindList, list: vs} }

// AsString renders v as a string for shell-command interpolation,
// flattening nested lists (at any depth) into space-separated words the way
// the original's make_line did.
func (v Value) AsString() string {
	switch v.kind {
	case kindNil:
		return ""
	case kindString:
		return v.str
	case kindInt:
		return itoa(v.num)
	case kindBool:
		if v.boo {
			return "true"
		}
		return "false"
	case kindPath:
		return v.pth.Display()
	case kindList:
		parts := make([]string, 0, len(v.list))
		for _, e := range v.list {
			parts = append(parts, e.AsString())
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// AsList returns the elements of v if it is a list, or a single-element slice
// otherwise (nil values yield an empty slice).
func (v Value) AsList() []Value {
	switch v.kind {
	case kindNil:
		return nil
	case kindList:
		return v.list
	default:
		return []Value{v}
	}
}

// Kind identifies a level in the environment chain, mirroring the original
// implementation's os/builtin/config/script terminology.
type Kind int

const (
	KindOS Kind = iota
	KindBuiltin
	KindConfig
	KindScript
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindOS:
		return "os"
	case KindBuiltin:
		return "builtin"
	case KindConfig:
		return "config"
	case KindScript:
		return "script"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Env is one level of the environment chain. The zero value is not usable;
// construct with New or NewOS.
type Env struct {
	kind   Kind
	name   string
	cwd    path.Path
	parent *Env
	vars   map[string]Value
}

// New creates a child environment of parent with its own variable map.
func New(kind Kind, name string, cwd path.Path, parent *Env) *Env {
	return &Env{kind: kind, name: name, cwd: cwd, parent: parent, vars: map[string]Value{}}
}

// NewOS creates the root environment backed by the process's OS environment
// variables. HOME is specially coerced to a Path, mirroring env.py's
// OS_SPECS table.
func NewOS(cwd path.Path) *Env {
	return &Env{kind: KindOS, name: "os", cwd: cwd, vars: nil}
}

// Kind reports which level of the chain this environment occupies.
func (e *Env) Kind() Kind { return e.kind }

// Name returns the environment's display name (e.g. "os", "builtin").
func (e *Env) Name() string { return e.name }

// Cwd returns the working directory associated with this environment level.
func (e *Env) Cwd() path.Path { return e.cwd }

// Parent returns the enclosing environment, or nil at the root.
func (e *Env) Parent() *Env { return e.parent }

// Get looks up id in this environment, falling back to ancestors. It
// returns Nil if undefined anywhere in the chain.
func (e *Env) Get(id string) Value {
	if e.kind == KindOS {
		return e.getOS(id)
	}
	if v, ok := e.vars[id]; ok {
		return v
	}
	if e.parent != nil {
		return e.parent.Get(id)
	}
	return Nil
}

// GetHere looks up id only in this environment's own map, ignoring parents.
func (e *Env) GetHere(id string) Value {
	if e.kind == KindOS {
		return e.getOS(id)
	}
	if v, ok := e.vars[id]; ok {
		return v
	}
	return Nil
}

func (e *Env) getOS(id string) Value {
	if id == "HOME" {
		if h, err := homedir.Dir(); err == nil {
			return PathValue(path.New(h))
		}
	}
	v, ok := os.LookupEnv(id)
	if !ok {
		return Nil
	}
	return String(v)
}

// Set assigns val to id in this environment's own map.
func (e *Env) Set(id string, val Value) {
	if e.kind == KindOS {
		os.Setenv(id, val.AsString())
		return
	}
	e.vars[id] = val
}

// IsDef reports whether id is defined anywhere in the chain from e upward.
func (e *Env) IsDef(id string) bool {
	if e.kind == KindOS {
		_, ok := os.LookupEnv(id)
		return ok || id == "HOME"
	}
	if _, ok := e.vars[id]; ok {
		return true
	}
	if e.parent != nil {
		return e.parent.IsDef(id)
	}
	return false
}

// Append appends val to the existing value of id. If id is defined in this
// environment's own map it is extended here (flattened one level, as lists
// do not nest further); otherwise the append is delegated to the parent, and
// if no ancestor defines it either, id is created here as a fresh list.
func (e *Env) Append(id string, val Value) {
	if e.kind == KindOS {
		cur := e.getOS(id)
		e.Set(id, String(cur.AsString()+val.AsString()))
		return
	}
	if _, ok := e.vars[id]; ok {
		e.vars[id] = appendValue(e.vars[id], val)
		return
	}
	if e.parent != nil && e.parent.IsDef(id) {
		e.parent.Append(id, val)
		return
	}
	e.vars[id] = appendValue(Nil, val)
}

func appendValue(base, val Value) Value {
	if base.IsNil() {
		return List(val.AsList()...)
	}
	// spec.md §4.9: appending to a plain string concatenates with a space
	// rather than upgrading to a list; only a base that is already a list
	// (or a non-string scalar being mixed with something else) upgrades.
	if base.kind == kindString && val.kind == kindString {
		return String(base.str + " " + val.str)
	}
	items := base.AsList()
	items = append(append([]Value{}, items...), val.AsList()...)
	return List(items...)
}

// PushScript creates a fresh child of kind KindScript over e, used when
// entering a subdirectory or a generator-introduced scope.
func (e *Env) PushScript(name string, cwd path.Path) *Env {
	return New(KindScript, name, cwd, e)
}

// PushFile creates a fresh child of kind KindFile over e, the per-file
// environment each registry.File owns.
func (e *Env) PushFile(name string, cwd path.Path) *Env {
	return New(KindFile, name, cwd, e)
}
