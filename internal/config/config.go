// Package config loads interpreter settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the user's home directory when no
// explicit path is given.
const DefaultFileName = ".loxrc.yaml"

// Config holds every setting the driver and REPL read.
type Config struct {
	Path    string        `yaml:"-"`
	REPL    REPLConfig    `yaml:"repl"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// REPLConfig configures the interactive prompt.
type REPLConfig struct {
	Prompt             string `yaml:"prompt"`
	ContinuationPrompt string `yaml:"continuation_prompt"`
	HistoryFile        string `yaml:"history_file"`
	Color              bool   `yaml:"color"`
}

// RuntimeConfig configures the interpreter.
type RuntimeConfig struct {
	MaxCallDepth int  `yaml:"max_call_depth"`
	Trace        bool `yaml:"trace"`
}

// ValidationError aggregates config validation failures.
type ValidationError struct {
	Path   string
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed")
	if e.Path != "" {
		b.WriteString(" for ")
		b.WriteString(e.Path)
	}
	b.WriteString(":")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		REPL: REPLConfig{
			Prompt:             "> ",
			ContinuationPrompt: "... ",
			HistoryFile:        "~/.lox_history",
			Color:              true,
		},
		Runtime: RuntimeConfig{
			MaxCallDepth: 4096,
		},
	}
}

// Load reads the config at path. An empty path means $HOME/.loxrc.yaml,
// and a missing default file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return finish(Default())
		}
		path = filepath.Join(home, DefaultFileName)
	}

	file, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return finish(Default())
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	cfg, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Path = path
	return finish(cfg)
}

// Parse decodes YAML from r on top of the defaults. Unknown keys are errors.
// The result is not validated; Load does that.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.REPL.HistoryFile = expandHome(cfg.REPL.HistoryFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	errs := ValidationError{Path: c.Path}
	if c.REPL.Prompt == "" {
		errs.Issues = append(errs.Issues, "repl.prompt must not be empty")
	}
	if c.REPL.ContinuationPrompt == "" {
		errs.Issues = append(errs.Issues, "repl.continuation_prompt must not be empty")
	}
	if c.Runtime.MaxCallDepth <= 0 {
		errs.Issues = append(errs.Issues,
			fmt.Sprintf("runtime.max_call_depth must be positive, got %d", c.Runtime.MaxCallDepth))
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
