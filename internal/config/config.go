// Package config implements the harness's configuration surface: CLI
// flags, an optional JSON config file, and the merge between them.
//
// Grounded on cmd/config.go's Config/getConfig/Apply pattern: a struct of
// null.v3-wrapped optional fields, one pflag.FlagSet builder, and an Apply
// method that lets a higher-priority source (CLI flags) override a
// lower-priority one (the config file) field by field, using each field's
// Valid bit rather than its zero value to decide whether it was set.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	null "gopkg.in/guregu/null.v3"
)

// Config is the harness's full configuration, mergeable from a JSON file
// and CLI flags (§6).
type Config struct {
	Cwd                  null.String       `json:"cwd"`
	Setup                null.String       `json:"setup"`
	Tests                []string          `json:"tests,omitempty"`
	EntryPoints          map[string]string `json:"entryPoints,omitempty"`
	Watch                null.Bool         `json:"watch"`
	Browser              null.String       `json:"browser"`
	BrowserServerOptions json.RawMessage   `json:"browserServerOptions,omitempty"`
	Headless             null.Bool         `json:"headless"`
	Debug                null.Bool         `json:"debug"`
	NoCoverage           null.Bool         `json:"noCov"`

	// Entries are the positional file-glob/name=path CLI arguments (§6),
	// still unsplit into Tests/EntryPoints. Not part of the JSON config
	// file format — only ever populated from CLI arguments.
	Entries []string `json:"-"`
}

// FlagSet builds the pflag.FlagSet the run command registers, mirroring
// cmd/config.go's package-level configFlagSet construction.
func FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringP("cwd", "", "", "working directory to resolve entry points and setup files from")
	fs.StringP("config", "c", "", "path to a JSON config file")
	fs.StringP("setup", "s", "", "path to a setup file run before every test file")
	fs.BoolP("watch", "w", false, "rerun affected tests on file change")
	fs.StringP("browser", "b", "", "browser channel/executable to launch")
	fs.String("browser-server-options", "", "JSON options for an already-running browser server to connect to instead of launching one")
	fs.BoolP("debug", "d", false, "enable verbose logging")
	fs.Bool("no-cov", false, "disable code coverage collection")
	return fs
}

// FromFlags reads a Config from a parsed FlagSet plus positional args.
func FromFlags(fs *pflag.FlagSet, args []string) (Config, error) {
	var c Config
	c.Cwd = flagString(fs, "cwd")
	c.Setup = flagString(fs, "setup")
	c.Watch = flagBool(fs, "watch")
	c.Browser = flagString(fs, "browser")
	c.Debug = flagBool(fs, "debug")
	c.NoCoverage = flagBool(fs, "no-cov")
	c.Entries = args

	if raw, _ := fs.GetString("browser-server-options"); raw != "" {
		if err := validateBrowserServerOptions(json.RawMessage(raw)); err != nil {
			return Config{}, err
		}
		c.BrowserServerOptions = json.RawMessage(raw)
	}

	return c, nil
}

// FromFile reads and validates a single-run Config from a JSON file on
// disk. If the file contains an ordered list of run objects, use
// ReadSequenceFile instead.
func FromFile(path string) (Config, error) {
	seq, err := ReadSequenceFile(path)
	if err != nil {
		return Config{}, err
	}
	return seq[0], nil
}

// ReadSequenceFile reads a config file from disk and parses it as a
// RunSequence (§6: either one object, or an ordered list of them).
func ReadSequenceFile(path string) (RunSequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	seq, err := ReadRunSequence(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return seq, nil
}

// validateBrowserServerOptions eagerly checks that browserServerOptions is
// at least well-formed JSON at config-load time, rather than deferring the
// failure to whenever the runner first tries to connect to the server
// (Supplemented Feature: eager browserServerOptions validation).
func validateBrowserServerOptions(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("browserServerOptions is not valid JSON: %w", err)
	}
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("browserServerOptions must be a JSON object, got %T", v)
	}
	return nil
}

// Apply overlays cfg on top of c, field by field, keeping c's value
// wherever cfg's corresponding field wasn't explicitly set. Precedence is
// the caller's responsibility: call base.Apply(override), not the reverse.
func (c Config) Apply(cfg Config) Config {
	if cfg.Cwd.Valid {
		c.Cwd = cfg.Cwd
	}
	if cfg.Setup.Valid {
		c.Setup = cfg.Setup
	}
	if cfg.Watch.Valid {
		c.Watch = cfg.Watch
	}
	if cfg.Browser.Valid {
		c.Browser = cfg.Browser
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	if cfg.Debug.Valid {
		c.Debug = cfg.Debug
	}
	if cfg.NoCoverage.Valid {
		c.NoCoverage = cfg.NoCoverage
	}
	if len(cfg.BrowserServerOptions) > 0 {
		c.BrowserServerOptions = cfg.BrowserServerOptions
	}
	if len(cfg.Tests) > 0 {
		c.Tests = cfg.Tests
	}
	if len(cfg.EntryPoints) > 0 {
		c.EntryPoints = cfg.EntryPoints
	}
	if len(cfg.Entries) > 0 {
		c.Entries = cfg.Entries
	}
	return c
}

func flagString(fs *pflag.FlagSet, name string) null.String {
	if !fs.Changed(name) {
		return null.String{}
	}
	v, _ := fs.GetString(name)
	return null.StringFrom(v)
}

func flagBool(fs *pflag.FlagSet, name string) null.Bool {
	if !fs.Changed(name) {
		return null.Bool{}
	}
	v, _ := fs.GetBool(name)
	return null.BoolFrom(v)
}
