// Package config provides configuration management for dcx.
// It handles loading and parsing of .context configuration files,
// expanding ${VAR} environment placeholders, and mapping the parsed
// YAML to typed Set and Model definitions.
package config

import "fmt"

// ContextSet defines a named, composable selection of project files.
// A set selects files directly through glob patterns and/or by including
// other sets, whose effective file lists are merged into its own.
type ContextSet struct {
	Name        string   `yaml:"-"`
	Description string   `yaml:"description"`
	Match       []string `yaml:"match"`
	Include     []string `yaml:"include"`
}

// ModelConfig defines a named model backed by one of the supported
// provider backends. APIKey holds the already-expanded credential; an
// empty value is surfaced by the provider layer as a missing credential.
type ModelConfig struct {
	Name        string `yaml:"-"`
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api-key"`
	Model       string `yaml:"model"`
	Description string `yaml:"description"`
}

// Config is the typed in-memory representation of a parsed .context file.
// It is loaded once per invocation and lent read-only to the resolver and
// provider layers.
type Config struct {
	Sets   map[string]*ContextSet  `yaml:"Sets"`
	Models map[string]*ModelConfig `yaml:"Models"`

	// BaseDir is the directory containing the loaded .context file.
	// Glob patterns are resolved relative to it.
	BaseDir string `yaml:"-"`
}

// GetSet returns a context set by name, or nil if not found.
func (c *Config) GetSet(name string) *ContextSet {
	if c.Sets == nil {
		return nil
	}
	return c.Sets[name]
}

// GetModel returns a model by name, or nil if not found.
func (c *Config) GetModel(name string) *ModelConfig {
	if c.Models == nil {
		return nil
	}
	return c.Models[name]
}

// ConfigError indicates malformed or missing configuration, including
// references to sets or models that do not exist.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
