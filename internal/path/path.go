// Package path provides a normalized, comparable filesystem path value used
// throughout the build graph, the environment chain, and the signature
// store.
package path

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Path is an immutable, normalized filesystem path. The zero value is the
// empty path and is not a valid reference to anything.
type Path struct {
	clean string
}

// New normalizes raw into a Path: it cleans "." and ".." segments, removes
// duplicate separators, and converts to slash-separated form regardless of
// host OS.
func New(raw string) Path {
	if raw == "" {
		return Path{}
	}
	return Path{clean: filepath.ToSlash(filepath.Clean(raw))}
}

// Cwd returns the current working directory as a Path.
func Cwd() (Path, error) {
	wd, err := os.Getwd()
	if err != nil {
		return Path{}, err
	}
	return New(wd), nil
}

// String returns the normalized path as a string, suitable for use with os
// and filepath functions.
func (p Path) String() string {
	return filepath.FromSlash(p.clean)
}

// Display returns the path in slash form, for logging and signature keys so
// that output is stable across host platforms.
func (p Path) Display() string {
	return p.clean
}

// IsEmpty reports whether p is the zero Path.
func (p Path) IsEmpty() bool {
	return p.clean == ""
}

// IsAbs reports whether p is an absolute path.
func (p Path) IsAbs() bool {
	return filepath.IsAbs(p.String())
}

// Join appends the given segments to p and renormalizes.
func (p Path) Join(elems ...string) Path {
	parts := append([]string{p.String()}, elems...)
	return New(filepath.Join(parts...))
}

// AppendExt returns a copy of p with ext appended to its final component,
// e.g. Path("a/b").AppendExt(".o") == Path("a/b.o"). A leading dot on ext is
// optional.
func (p Path) AppendExt(ext string) Path {
	if ext == "" {
		return p
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return New(p.clean + ext)
}

// WithExt returns a copy of p with its extension replaced by ext (a leading
// dot is optional). If p has no extension, ext is appended.
func (p Path) WithExt(ext string) Path {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	trimmed := strings.TrimSuffix(p.clean, p.Ext())
	return New(trimmed + ext)
}

// Ext returns the file extension of p's final component, including the
// leading dot, or "" if there is none.
func (p Path) Ext() string {
	return filepath.Ext(p.clean)
}

// Base returns the final path component.
func (p Path) Base() string {
	return filepath.Base(p.String())
}

// Parent returns the directory containing p.
func (p Path) Parent() Path {
	return New(filepath.Dir(p.String()))
}

// RelativeTo returns p expressed relative to base. If p is not under base,
// the second return value is false.
func (p Path) RelativeTo(base Path) (Path, bool) {
	rel, err := filepath.Rel(base.String(), p.String())
	if err != nil || strings.HasPrefix(rel, "..") {
		return Path{}, false
	}
	return New(rel), true
}

// PrefixedBy reports whether p lies at or under base.
func (p Path) PrefixedBy(base Path) bool {
	_, ok := p.RelativeTo(base)
	return ok
}

// Equal reports whether p and other refer to the same normalized path.
func (p Path) Equal(other Path) bool {
	return p.clean == other.clean
}

// Exists reports whether a filesystem entry exists at p.
func (p Path) Exists() bool {
	_, err := os.Stat(p.String())
	return err == nil
}

// IsDir reports whether p exists and is a directory.
func (p Path) IsDir() bool {
	info, err := os.Stat(p.String())
	return err == nil && info.IsDir()
}

// CanRead reports whether p exists and is readable by the current process.
func (p Path) CanRead() bool {
	f, err := os.Open(p.String())
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ModTime returns the modification time of p. If p does not exist, ok is
// false.
func (p Path) ModTime() (t time.Time, ok bool) {
	info, err := os.Stat(p.String())
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// MarshalText implements encoding.TextMarshaler so Path can be used directly
// as a map key in msgpack/yaml encoded structures.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.clean), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(b []byte) error {
	*p = New(string(b))
	return nil
}
