// Package traversal implements the staleness decision and post-order
// dependency walk of SPEC_FULL.md §4.7: NeedsUpdate and CollectUpdates.
//
// Grounded on the original implementation's recipe.py File methods of the
// same name (needs_update, collect_updates, younger_than, time), with the
// signature.Store dependency injected here rather than baked into the File
// type, keeping package registry a pure data model (see DESIGN.md).
package traversal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/maatbuild/maat/internal/env"
	"github.com/maatbuild/maat/internal/path"
	"github.com/maatbuild/maat/internal/registry"
	"github.com/maatbuild/maat/internal/signature"
)

// ErrMissingInput is returned by NeedsUpdate when a non-phony file with no
// recipe does not exist on disk: the original's "don't know how to build
// %s?" MaatError.
type ErrMissingInput struct {
	Path string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("don't know how to build %s", e.Path)
}

// ErrCycle is returned by CollectUpdates when a file's dependency graph
// loops back on itself, per spec: a cycle is a reported error, not an
// infinite traversal.
type ErrCycle struct {
	Path string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("dependency cycle detected at %s", e.Path)
}

// Time returns the effective modification time of f as a Unix timestamp:
// zero for goals, the maximum dependency time for meta files, and the mtime
// of the actual path otherwise. top is the registry's top directory, used
// to resolve the BPATH-redirected actual path.
func Time(f *registry.File, top path.Path) int64 {
	if f.IsGoal() {
		return 0
	}
	if f.IsMeta() {
		r := f.Recipe()
		if r == nil {
			return 0
		}
		var max int64
		for _, d := range r.Deps() {
			if t := Time(d, top); t > max {
				max = t
			}
		}
		return max
	}
	t, ok := f.Actual(top).ModTime()
	if !ok {
		return 0
	}
	return t.Unix()
}

// youngerThan reports whether f's mtime is older than other's, mirroring
// the original's File.younger_than despite that name: a non-existent, non-phony/meta "other" makes
// f unconditionally younger (it must be rebuilt to produce other), and a
// directory "other" is treated as never causing a rebuild.
func youngerThan(f, other *registry.File, top path.Path) bool {
	if !other.IsMeta() && !other.IsPhony() && !other.Actual(top).Exists() {
		return true
	}
	if other.Actual(top).IsDir() {
		return false
	}
	return Time(f, top) < Time(other, top)
}

// NeedsUpdate decides whether f must be rebuilt: goals and phony files
// always need updating; a target with no recipe that doesn't exist is an
// ErrMissingInput; a signature mismatch or an out-of-date/needs-update
// dependency forces a rebuild.
func NeedsUpdate(f *registry.File, top path.Path, signs *signature.Store) (bool, error) {
	if f.IsGoal() || f.IsPhony() {
		return true, nil
	}

	if !f.Actual(top).Exists() {
		if f.Recipe() != nil {
			return true, nil
		}
		return false, &ErrMissingInput{Path: f.Path().Display()}
	}

	r := f.Recipe()
	if r == nil {
		return false, nil
	}

	if !signs.Test(f.Path().Display(), r.Signature()) {
		return true, nil
	}

	for _, d := range r.Deps() {
		du, err := NeedsUpdate(d, top, signs)
		if err != nil {
			return false, err
		}
		if du || youngerThan(f, d, top) {
			return true, nil
		}
	}
	return false, nil
}

// CollectUpdates performs a post-order walk of f's dependency graph,
// appending to targets (in build order, each dependency before its
// dependents) every file that NeedsUpdate reports as stale. Each file
// appears at most once, even if reachable through multiple paths. A cycle
// in the dependency graph is reported as ErrCycle rather than looped
// forever.
func CollectUpdates(f *registry.File, top path.Path, signs *signature.Store, targets *[]*registry.File, done map[*registry.File]bool) error {
	if done == nil {
		done = map[*registry.File]bool{}
	}
	return collectUpdates(f, top, signs, targets, done, map[*registry.File]bool{})
}

// CollectAll performs the same post-order walk as CollectUpdates but
// appends every reachable target (a file with a recipe, or a phony file)
// unconditionally, ignoring staleness entirely; plain source files are
// never appended. This backs the `-B`/`--always-make` flag, which the original
// implements by having every file simply report itself as needing an
// update regardless of signature or mtime.
func CollectAll(f *registry.File, targets *[]*registry.File, done map[*registry.File]bool) error {
	if done == nil {
		done = map[*registry.File]bool{}
	}
	return collectAll(f, targets, done, map[*registry.File]bool{})
}

func collectAll(f *registry.File, targets *[]*registry.File, done, visiting map[*registry.File]bool) error {
	if visiting[f] {
		return &ErrCycle{Path: f.Path().Display()}
	}
	visiting[f] = true
	defer delete(visiting, f)

	if r := f.Recipe(); r != nil {
		for _, d := range r.Deps() {
			if err := collectAll(d, targets, done, visiting); err != nil {
				return err
			}
		}
	}
	if done[f] {
		return nil
	}
	done[f] = true
	if f.Recipe() == nil && !f.IsPhony() {
		return nil
	}
	*targets = append(*targets, f)
	return nil
}

// ImportDepFile scans depFile for lines in Makefile dependency-rule format
// ("target: dep dep ..."), adding each dep to the recipe already bound to
// the matching target. Paths are resolved relative to cur. A target with no
// bound recipe is silently skipped, and a missing depFile is not an error:
// both mirror parse_deps, which exists to let a compiler's `-MMD`-style
// output feed back into the graph without the generating rule needing to
// know the dependency list up front.
func ImportDepFile(reg *registry.Registry, cur path.Path, scope *env.Env, depFile path.Path) error {
	f, err := os.Open(depFile.String())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.Index(line, ":")
		if colon < 0 {
			continue
		}
		targets := strings.Fields(line[:colon])
		deps := strings.Fields(line[colon+1:])

		for _, t := range targets {
			tf := reg.FileFor(path.New(t), cur, scope)
			if tf.Recipe() == nil {
				continue
			}
			for _, d := range deps {
				df := reg.FileFor(path.New(d), cur, scope)
				tf.AddDep(df)
			}
		}
	}
	return scanner.Err()
}

func collectUpdates(f *registry.File, top path.Path, signs *signature.Store, targets *[]*registry.File, done, visiting map[*registry.File]bool) error {
	if visiting[f] {
		return &ErrCycle{Path: f.Path().Display()}
	}
	visiting[f] = true
	defer delete(visiting, f)

	if r := f.Recipe(); r != nil {
		for _, d := range r.Deps() {
			if err := collectUpdates(d, top, signs, targets, done, visiting); err != nil {
				return err
			}
		}
	}
	if done[f] {
		return nil
	}
	update, err := NeedsUpdate(f, top, signs)
	if err != nil {
		return err
	}
	if update {
		done[f] = true
		*targets = append(*targets, f)
	}
	return nil
}
