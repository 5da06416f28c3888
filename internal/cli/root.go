// Package cli parses the command line and drives one engine run. It is a
// flat command, no subcommands — `maat` behaves like `make`, not like the
// teacher's `start`/`version` daemon command tree.
//
// Grounded on the teacher's internal/cli/root.go (kong wiring,
// configureLogger, isatty) and original_source/maat/__init__.py's argparse
// flag table (which flags exist and what they mean).
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/maatbuild/maat/internal"
	"github.com/maatbuild/maat/internal/builder"
	"github.com/maatbuild/maat/internal/embedlib"
	"github.com/maatbuild/maat/internal/engine"
	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/ioctx"
	"github.com/maatbuild/maat/internal/logging"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/paths"
	"github.com/maatbuild/maat/internal/projectcfg"
	"github.com/maatbuild/maat/internal/registry"
	"github.com/maatbuild/maat/internal/signature"
)

// ErrNoFrontend is returned when no Bootstrap hook has been registered: this
// repository implements the engine's script host interface but not a
// script language itself (spec.md's explicit front-end Non-goal), so a
// plain `maat` binary with no front-end linked in has nothing to build.
var ErrNoFrontend = errors.New("no script front-end registered: see cli.Bootstrap")

// Bootstrap is the hook an embedding front-end sets before calling Execute:
// it receives a freshly constructed Engine and is responsible for loading
// whatever script/rule definitions make up the project, mirroring
// original_source/maat/__init__.py's role as the module a `make.py` script
// imports against.
var Bootstrap func(e *engine.Engine) error

// RootCmd is the single flat command `maat` runs, parsed by kong.
var RootCmd struct {
	Verbose       bool             `short:"v" help:"Enable verbose output."`
	List          bool             `short:"l" help:"List known goals and exit."`
	PrintDataBase bool             `short:"p" help:"Print the file/recipe database and exit."`
	DryRun        bool             `short:"n" help:"Print what would be built, without building."`
	Question      bool             `short:"q" help:"Exit 1 if anything is stale, without building."`
	AlwaysMake    bool             `short:"B" help:"Consider every target stale."`
	Quiet         bool             `short:"s" help:"Suppress informational output."`
	Time          bool             `short:"t" help:"Show elapsed time for each target built and for the whole build."`
	Version       kong.VersionFlag `short:"V" help:"Show version information and exit."`
	Embed         bool             `short:"e" help:"Copy the engine's bundled script-library notes into .maat/lib and exit."`

	Args []string `arg:"" optional:"" help:"Goals to build and/or KEY=VALUE environment assignments."`
}

// Execute parses os.Args, configures logging, and runs one engine pass.
func Execute() error {
	kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("A declarative build engine.\n\nResolves goals to files, expands generator chains, and builds whatever is stale."),
		kong.UsageOnError(),
		kong.Vars{"version": internal.VersionString()},
	)

	handler := configureLogger()
	slog.SetDefault(slog.New(handler.WithGroup(internal.Name)))

	return run(context.Background())
}

func configureLogger() *logging.Handler {
	handler := logging.NewHandler()

	debug := internal.IsDebug()
	quiet := RootCmd.Quiet || internal.IsQuiet()
	verbose := RootCmd.Verbose || internal.IsVerbose()

	switch {
	case debug:
		handler.SetLevel(slog.LevelDebug)
	case quiet:
		handler.SetLevel(slog.LevelWarn)
	default:
		handler.SetLevel(slog.LevelInfo)
	}
	handler.SetVerbose(verbose)
	handler.SetStream(os.Stderr)
	return handler
}

func run(ctx context.Context) error {
	top, err := path.Cwd()
	if err != nil {
		return err
	}

	if RootCmd.Embed {
		dest := paths.ProjectLib(top.String())
		if err := embedlib.WriteTo(dest); err != nil {
			return errors.Wrap(err, "embed")
		}
		fmt.Println("embedded script-library notes into", dest)
		return nil
	}

	goals, overrides := splitArgs(RootCmd.Args)

	signs := signature.New(top.Join(".maat/signs").String())
	if err := signs.Load(); err != nil {
		slog.Warn(err.Error())
	}

	cfg, err := projectcfg.LoadGenerated(top.Join(".maat/config.yaml").String())
	if err != nil {
		return err
	}
	defaults, err := projectcfg.LoadDefaults(top.Join("maat.toml").String())
	if err != nil {
		return err
	}

	configVars := map[string]env.Value{}
	for k, v := range cfg.Vars {
		configVars[k] = env.String(v)
	}
	for k, v := range defaults {
		if _, ok := configVars[k]; !ok {
			configVars[k] = env.String(fmt.Sprintf("%v", v))
		}
	}

	builtin := map[string]env.Value{}
	for _, kv := range overrides {
		builtin[kv[0]] = env.String(kv[1])
	}

	io := ioctx.New(os.Stdout, os.Stderr, slog.Default())
	io.SetQuiet(RootCmd.Quiet)

	e := engine.New(io, top, signs, builtin, configVars)

	if Bootstrap == nil {
		return ErrNoFrontend
	}
	if err := Bootstrap(e); err != nil {
		return err
	}

	if RootCmd.List {
		listGoals(e)
		return nil
	}

	if RootCmd.PrintDataBase {
		printDataBase(e)
		return nil
	}

	if len(goals) == 0 {
		goals = []string{"all"}
	}

	mode := builder.Sequential
	switch {
	case RootCmd.Question:
		mode = builder.Question
	case RootCmd.DryRun:
		mode = builder.DryRun
	}

	if err := e.Run(ctx, goals, mode, RootCmd.Time, RootCmd.AlwaysMake); err != nil {
		if errors.Is(err, builder.ErrStale) {
			return err
		}
		io.PrintError(err.Error())
		return err
	}
	return nil
}

// listGoals prints every non-hidden goal, sorted by name, followed by its
// DESCRIPTION variable (looked up at the goal file's own environment level,
// not inherited from an ancestor), mirroring the original's list_goals:
// "l = [f for f in file_db if f.is_goal and not f.is_hidden]" sorted by
// str(f), each printed with its get_here("DESCRIPTION").
func listGoals(e *engine.Engine) {
	var goals []*registry.File
	for _, f := range e.Registry().All() {
		if f.IsGoal() && !f.IsHidden() {
			goals = append(goals, f)
		}
	}
	sort.Slice(goals, func(i, j int) bool {
		return goals[i].Path().Display() < goals[j].Path().Display()
	})
	for _, f := range goals {
		name := f.Path().Display()
		if desc := f.GetHere("DESCRIPTION"); !desc.IsNil() {
			fmt.Printf("%s  %s\n", name, desc.AsString())
		} else {
			fmt.Println(name)
		}
	}
}

// printDataBase prints every distinct recipe's result and commands once
// (several results may share one recipe), followed by the generator
// database's ext -> resultExt table, mirroring the original's print_db:
// one pass over file_db's bound recipes, one pass over ext_db's gens maps.
func printDataBase(e *engine.Engine) {
	done := map[registry.Recipe]bool{}
	for _, f := range e.Registry().All() {
		r := f.Recipe()
		if r == nil || done[r] {
			continue
		}
		done[r] = true
		fmt.Println(f.Path().Display() + ":")
		for _, cmd := range r.Commands() {
			fmt.Println("\t" + cmd)
		}
	}

	for _, edge := range e.Generators().Edges() {
		fmt.Printf("*%s: *%s\n", edge.ResultExt, edge.Ext)
	}
}

// splitArgs separates goal names from KEY=VALUE environment overrides,
// first '=' wins, matching make's own command-line convention.
func splitArgs(args []string) (goals []string, overrides [][2]string) {
	for _, a := range args {
		if idx := strings.Index(a, "="); idx > 0 {
			overrides = append(overrides, [2]string{a[:idx], a[idx+1:]})
			continue
		}
		goals = append(goals, a)
	}
	return goals, overrides
}
