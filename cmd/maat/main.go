// Command maat resolves build goals against a declarative file graph and
// runs whatever is stale.
//
// Grounded on the teacher's cmd/cruxd/cruxd.go: same build-metadata logging
// at startup, same os.Exit(1)-on-error shape, adapted from a daemon's
// server.Start/Stop lifecycle to a single resolve-then-build pass.
package main

import (
	"log/slog"
	"os"

	"github.com/maatbuild/maat/internal"
	"github.com/maatbuild/maat/internal/cli"
)

func main() {
	slog.Debug("build", "version", internal.VersionString())
	slog.Debug("maat is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// cwd returns the current working directory or "(unknown)".
func cwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return wd
}
