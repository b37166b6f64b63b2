// Package config loads the single process-wide YAML configuration
// described in SPEC_FULL.md §9.2: built-in defaults merged with an
// optional user override file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ShellPreamble overrides the shell-integration snippet for one shell
// family. Empty fields fall back to the built-in snippet for that family.
type ShellPreamble struct {
	Bash       string `yaml:"bash,omitempty"`
	Zsh        string `yaml:"zsh,omitempty"`
	Fish       string `yaml:"fish,omitempty"`
	PowerShell string `yaml:"powershell,omitempty"`
}

// Config is the merged, effective configuration for one process.
type Config struct {
	DefaultShell     string        `yaml:"default_shell,omitempty"`
	RingBufferCap    int           `yaml:"ring_buffer_cap,omitempty"`
	RingBufferTrim   int           `yaml:"ring_buffer_trim,omitempty"`
	PromptWaitTimeout time.Duration `yaml:"prompt_wait_timeout,omitempty"`

	DataRoot string `yaml:"data_root,omitempty"` // holds flows/, executions/, history.db

	IntentConfidenceThreshold float64 `yaml:"intent_confidence_threshold,omitempty"`

	ShellPreambleOverrides ShellPreamble `yaml:"shell_preamble_overrides,omitempty"`
}

// Defaults returns the built-in configuration before any user file is
// merged in.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DefaultShell:              os.Getenv("SHELL"),
		RingBufferCap:             500_000,
		RingBufferTrim:            250_000,
		PromptWaitTimeout:         10 * time.Second,
		DataRoot:                  filepath.Join(home, ".config", "termai"),
		IntentConfidenceThreshold: 0.45,
	}
}

// UserConfigPath returns the path to the optional user override file.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "termai", "config.yaml"), nil
}

// Load builds the effective Config: built-in defaults with the user file
// (if present) merged over them. Unset scalar fields in the user file fall
// back to the default; slices/maps in the user file replace wholesale.
func Load() (*Config, error) {
	cfg := Defaults()

	path, err := UserConfigPath()
	if err != nil {
		return cfg, nil //nolint: the probe can still run without a resolvable home
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, err
	}
	mergeInto(cfg, &override)
	return cfg, nil
}

// mergeInto applies non-zero scalar fields of override onto base, in
// place. Zero-valued fields in override leave base's default untouched.
func mergeInto(base, override *Config) {
	if override.DefaultShell != "" {
		base.DefaultShell = override.DefaultShell
	}
	if override.RingBufferCap != 0 {
		base.RingBufferCap = override.RingBufferCap
	}
	if override.RingBufferTrim != 0 {
		base.RingBufferTrim = override.RingBufferTrim
	}
	if override.PromptWaitTimeout != 0 {
		base.PromptWaitTimeout = override.PromptWaitTimeout
	}
	if override.DataRoot != "" {
		base.DataRoot = override.DataRoot
	}
	if override.IntentConfidenceThreshold != 0 {
		base.IntentConfidenceThreshold = override.IntentConfidenceThreshold
	}
	if override.ShellPreambleOverrides != (ShellPreamble{}) {
		base.ShellPreambleOverrides = override.ShellPreambleOverrides
	}
}

// FlowsDir, ExecutionsDir, and HistoryDBPath locate the persisted state
// layout from SPEC_FULL.md §6.
func (c *Config) FlowsDir() string      { return filepath.Join(c.DataRoot, "flows") }
func (c *Config) ExecutionsDir() string { return filepath.Join(c.DataRoot, "executions") }
func (c *Config) HistoryDBPath() string { return filepath.Join(c.DataRoot, "history.db") }

// EnsureDataDirs creates the directories Load's DataRoot implies.
func (c *Config) EnsureDataDirs() error {
	for _, d := range []string{c.DataRoot, c.FlowsDir(), c.ExecutionsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}
