// Package paths resolves the platform-appropriate directories the engine
// needs outside the project tree itself, plus the project-local directory
// `--embed` writes the embedded script-library assets into.
//
// Repurposed from the teacher's socket/PID-file daemon paths (same
// xdg-backed resolution shape, different concern: this tool has no daemon
// to rendezvous with).
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming under XDG locations.
	toolName = "maat"

	// ProjectLibDir is the directory `--embed` copies the engine's bundled
	// script-library assets into, relative to a project's top directory.
	ProjectLibDir = ".maat/lib"

	// DefaultDirMode is the permission mode for created directories.
	DefaultDirMode os.FileMode = 0755

	// DefaultFileMode is the permission mode for created files.
	DefaultFileMode os.FileMode = 0644
)

// EmbedCache returns the user-wide cache directory location for
// script-library assets. `--embed` does not go through it: it writes the
// embedded assets straight into ProjectLib.
//
//	Linux:   $XDG_CACHE_HOME/maat/embed
//	macOS:   ~/Library/Caches/maat/embed
func EmbedCache() string {
	return filepath.Join(xdg.CacheHome, toolName, "embed")
}

// ProjectLib returns the project-local destination directory for `--embed`,
// resolved against top (the project's top directory).
func ProjectLib(top string) string {
	return filepath.Join(top, ProjectLibDir)
}

// ConfigDir returns the user-wide configuration directory for
// tool-global settings that aren't project state (nothing uses this yet,
// but it mirrors the teacher's Runtime()/Socket()/PIDFile() trio having a
// single XDG root they're all built from).
//
//	Linux:   $XDG_CONFIG_HOME/maat
//	macOS:   ~/Library/Application Support/maat
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, toolName)
}
