// Package embedlib bundles the engine's standard-library script-helper
// notes as embedded assets, copied into a project tree by the `--embed`
// flag. This replaces the teacher's "copy the interpreter's std modules"
// notion (maat/std.py, maat/config.py importable from any script) with the
// idiomatic Go equivalent: there is no interpreter to embed, so what ships
// is reference documentation for the front-end that does provide one.
package embedlib

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed lib
var assets embed.FS

// FS returns the embedded "lib" subtree.
func FS() (fs.FS, error) {
	return fs.Sub(assets, "lib")
}

// WriteTo extracts every embedded asset into destDir, creating it and any
// needed subdirectories. Existing files are overwritten.
func WriteTo(destDir string) error {
	sub, err := FS()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return fs.WalkDir(sub, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(sub, name)
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
