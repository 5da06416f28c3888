// Package filter implements the predicate abstraction of SPEC_FULL.md
// §4.12: a reusable way to decide whether a path matches, used by install
// and copy rules. The original implementation has no standalone Filter
// type of its own — install/copy rules there use ad hoc fnmatch/list
// checks inline — so this package follows SPEC_FULL.md's component
// description directly rather than porting a specific file.
package filter

import (
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a given path string matches some predicate.
type Filter interface {
	Match(p string) bool
}

type alwaysYes struct{}

func (alwaysYes) Match(string) bool { return true }

// AlwaysYes matches every path.
var AlwaysYes Filter = alwaysYes{}

type alwaysNo struct{}

func (alwaysNo) Match(string) bool { return false }

// AlwaysNo matches no path.
var AlwaysNo Filter = alwaysNo{}

// ListMembership matches any path present verbatim in the given set.
type ListMembership struct {
	set map[string]bool
}

// NewListMembership builds a ListMembership filter from members.
func NewListMembership(members []string) *ListMembership {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return &ListMembership{set: set}
}

func (f *ListMembership) Match(p string) bool { return f.set[p] }

// ShellGlob matches paths against a shell glob pattern, including
// doublestar's recursive "**" extension (an enrichment the original's
// plain fnmatch never supported).
type ShellGlob struct {
	pattern string
}

// NewShellGlob builds a ShellGlob filter from pattern.
func NewShellGlob(pattern string) *ShellGlob {
	return &ShellGlob{pattern: pattern}
}

func (f *ShellGlob) Match(p string) bool {
	ok, err := doublestar.Match(f.pattern, p)
	return err == nil && ok
}

// Regex matches paths against a compiled regular expression.
type Regex struct {
	exp *regexp.Regexp
}

// NewRegex compiles pattern and builds a Regex filter.
func NewRegex(pattern string) (*Regex, error) {
	exp, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regex{exp: exp}, nil
}

func (f *Regex) Match(p string) bool { return f.exp.MatchString(p) }

// FunctionWrap adapts an arbitrary Go predicate function to Filter.
type FunctionWrap struct {
	fn func(p string) bool
}

// NewFunctionWrap wraps fn as a Filter.
func NewFunctionWrap(fn func(p string) bool) *FunctionWrap {
	return &FunctionWrap{fn: fn}
}

func (f *FunctionWrap) Match(p string) bool { return f.fn(p) }

// Not negates the wrapped filter.
type Not struct {
	inner Filter
}

func NewNot(inner Filter) *Not { return &Not{inner: inner} }

func (f *Not) Match(p string) bool { return !f.inner.Match(p) }

// And matches when every wrapped filter matches. An empty And matches
// everything, the identity for conjunction.
type And struct {
	filters []Filter
}

func NewAnd(filters ...Filter) *And { return &And{filters: filters} }

func (f *And) Match(p string) bool {
	for _, inner := range f.filters {
		if !inner.Match(p) {
			return false
		}
	}
	return true
}

// Or matches when any wrapped filter matches. An empty Or matches nothing,
// the identity for disjunction.
type Or struct {
	filters []Filter
}

func NewOr(filters ...Filter) *Or { return &Or{filters: filters} }

func (f *Or) Match(p string) bool {
	for _, inner := range f.filters {
		if inner.Match(p) {
			return true
		}
	}
	return false
}

// NewFilter dispatches v to the Filter variant matching its dynamic type,
// per spec.md §4.12's factory rules: nil becomes AlwaysYes (AlwaysNo if
// negate is set), a string becomes a ShellGlob, a []string a
// ListMembership, a *regexp.Regexp a Regex, and a func(string) bool a
// FunctionWrap. negate wraps the result in Not for any non-nil type.
func NewFilter(v any, negate bool) Filter {
	if v == nil {
		if negate {
			return AlwaysNo
		}
		return AlwaysYes
	}

	var f Filter
	switch t := v.(type) {
	case string:
		f = NewShellGlob(t)
	case []string:
		f = NewListMembership(t)
	case *regexp.Regexp:
		f = &Regex{exp: t}
	case func(string) bool:
		f = NewFunctionWrap(t)
	case Filter:
		f = t
	default:
		f = AlwaysNo
	}

	if negate {
		return NewNot(f)
	}
	return f
}
