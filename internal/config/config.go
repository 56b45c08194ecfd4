// Package config loads tact.config.yaml into an immutable Config value
// consumed by the orchestrator (§6).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/tactrunner/tact/internal/multierror"
	"github.com/tactrunner/tact/internal/suite"
)

// TestOptions mirrors suite.Options in YAML-friendly form: plain value
// fields instead of pointers. AsSuiteOptions treats a field left at its
// zero value as absent.
type TestOptions struct {
	Shell   string            `yaml:"shell"`
	Rows    int               `yaml:"rows"`
	Columns int               `yaml:"columns"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`
}

// AsSuiteOptions converts the YAML value into suite.Options, leaving a
// field nil (unset) when it was left at its YAML zero value.
func (o TestOptions) AsSuiteOptions() suite.Options {
	var out suite.Options
	if o.Shell != "" {
		shell := o.Shell
		out.Shell = &shell
	}
	if o.Rows != 0 {
		rows := o.Rows
		out.Rows = &rows
	}
	if o.Columns != 0 {
		cols := o.Columns
		out.Columns = &cols
	}
	if o.Cwd != "" {
		cwd := o.Cwd
		out.Cwd = &cwd
	}
	if o.Env != nil {
		out.Env = o.Env
	}
	return out
}

// Project is one entry of Config.Projects: a name, a glob selecting test
// files, and default options for tests under it.
type Project struct {
	Name      string      `yaml:"name"`
	TestMatch string      `yaml:"testMatch"`
	Use       TestOptions `yaml:"use"`

	compiled glob.Glob
}

// Matches reports whether a resolved file path is selected by this
// project's testMatch glob.
func (p *Project) Matches(path string) bool {
	if p.compiled == nil {
		return false
	}
	// Also trying "/"+path lets a leading "**/" select files directly
	// under the root, not only files in a subdirectory.
	return p.compiled.Match(path) || p.compiled.Match("/"+path)
}

type expectConfig struct {
	Timeout int `yaml:"timeout"`
}

// Config is the unmarshaled, validated contents of tact.config.yaml (§6).
type Config struct {
	TimeoutMS       int          `yaml:"timeout"`
	Expect          expectConfig `yaml:"expect"`
	Retries         int          `yaml:"retries"`
	GlobalTimeoutMS int          `yaml:"globalTimeout"`
	Projects        []Project    `yaml:"projects"`

	// FlakyFailsRun overrides §4.C's default ("flaky counts as expected")
	// when true, making a flaky outcome count toward the process exit code.
	// Not present in tact.config.yaml, and no CLI flag sets it: it stays
	// false unless code that builds the Config sets it directly.
	FlakyFailsRun bool `yaml:"-"`
}

// Timeout is the configured per-test timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ExpectTimeout is the configured default for toHaveValue when a call
// omits its own timeout.
func (c *Config) ExpectTimeout() time.Duration {
	return time.Duration(c.Expect.Timeout) * time.Millisecond
}

// GlobalTimeout is the configured process-wide deadline, or zero if unset.
func (c *Config) GlobalTimeout() time.Duration {
	return time.Duration(c.GlobalTimeoutMS) * time.Millisecond
}

// Load reads and validates a tact.config.yaml file at path, compiling each
// project's testMatch glob and filling in documented defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyDefaults(&c)

	var errs multierror.Error
	for i := range c.Projects {
		p := &c.Projects[i]
		if p.TestMatch == "" {
			errs = append(errs, fmt.Errorf("project %q is missing testMatch", p.Name))
			continue
		}
		compiled, err := glob.Compile(p.TestMatch, '/')
		if err != nil {
			errs = append(errs, fmt.Errorf("project %q has invalid testMatch %q: %w", p.Name, p.TestMatch, err))
			continue
		}
		p.compiled = compiled
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s: %w", path, errs)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 30000
	}
	if c.Expect.Timeout == 0 {
		c.Expect.Timeout = 5000
	}
	for i := range c.Projects {
		if c.Projects[i].Use.Rows == 0 {
			c.Projects[i].Use.Rows = 30
		}
		if c.Projects[i].Use.Columns == 0 {
			c.Projects[i].Use.Columns = 80
		}
	}
}
