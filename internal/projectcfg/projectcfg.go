// Package projectcfg implements the generated-configuration and
// project-defaults layers of SPEC_FULL.md §4.9/§6: a persisted
// config.yaml capturing probed values plus a host fingerprint (so a
// config directory accidentally reused on a different machine is
// detected), and an optional maat.toml file of project defaults loaded
// into the config environment level before any project-level probing
// runs.
//
// Grounded on the original implementation's config.py (host(), setup(),
// load(), the ELF_HOST compatibility check) for the fingerprint-guard
// semantics, and emergent-company-specmcp's internal/config/config.go for
// the defaults-file-with-overrides loading pattern.
package projectcfg

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/host"
	"gopkg.in/yaml.v3"
)

// Fingerprint identifies the host a configuration was generated on,
// repurposing config.py's "%s %s %s %s" % os.uname() string with
// gopsutil's structured host info instead of raw uname fields.
func Fingerprint() (string, error) {
	info, err := host.Info()
	if err != nil {
		return "", errors.Wrap(err, "host fingerprint")
	}
	return info.Platform + " " + info.PlatformVersion + " " + info.KernelVersion + " " + info.KernelArch, nil
}

// Generated is the persisted probe-result file, config.yaml under the
// project's state directory.
type Generated struct {
	Host    string            `yaml:"host"`
	Configured bool           `yaml:"configured"`
	Vars    map[string]string `yaml:"vars"`
}

// LoadGenerated reads config.yaml from path. A missing file returns a
// fresh, unconfigured Generated rather than an error, mirroring setup()
// being invoked when config.py doesn't exist yet.
func LoadGenerated(path string) (*Generated, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Generated{Vars: map[string]string{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load generated config")
	}
	var g Generated
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "parse generated config")
	}
	if g.Vars == nil {
		g.Vars = map[string]string{}
	}
	return &g, nil
}

// Save writes g to path as YAML.
func (g *Generated) Save(path string) error {
	data, err := yaml.Marshal(g)
	if err != nil {
		return errors.Wrap(err, "marshal generated config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "save generated config")
	}
	return nil
}

// CheckHost reports whether g's recorded host fingerprint matches the
// current host. An empty recorded fingerprint (a never-configured or
// freshly created Generated) is always considered compatible.
func (g *Generated) CheckHost(current string) bool {
	return g.Host == "" || g.Host == current
}

// SetIfUnset records val under id unless it is already present, mirroring
// config.py's set_if: a way for builtin configuration probing to avoid
// clobbering a user's override.
func (g *Generated) SetIfUnset(id, val string) bool {
	if _, ok := g.Vars[id]; ok {
		return false
	}
	g.Vars[id] = val
	return true
}

// Defaults is the parsed content of an optional maat.toml project-defaults
// file, loaded into the config environment level before any builtin
// probing runs, so a project can pin values like a default compiler or
// target triple without a generated config.yaml.
type Defaults map[string]any

// LoadDefaults reads maat.toml from path. A missing file yields an empty,
// non-error Defaults.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	_, err := toml.DecodeFile(path, &d)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "parse project defaults")
	}
	if d == nil {
		d = Defaults{}
	}
	return d, nil
}
