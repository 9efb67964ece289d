package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name of the configuration file dcx looks for.
const DefaultConfigFile = ".context"

// ErrNoConfigFile is returned when no .context file can be located.
var ErrNoConfigFile = errors.New("no .context file found")

// Loader handles locating and parsing .context configuration files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
	}
}

// FindConfigFile finds the closest .context file by walking up the
// directory hierarchy starting from startDir. Returns an empty string
// if none is found.
func FindConfigFile(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, DefaultConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadFromFile loads configuration from the given .context file. If path
// is empty, the nearest .context file above the working directory is used.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		path = FindConfigFile(cwd)
		if path == "" {
			return nil, &ConfigError{Err: ErrNoConfigFile}
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg, err := l.LoadFromString(string(content))
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg.BaseDir = filepath.Dir(path)
	l.logger.Debug("loaded config",
		zap.String("path", path),
		zap.Int("sets", len(cfg.Sets)),
		zap.Int("models", len(cfg.Models)),
	)
	return cfg, nil
}

// LoadFromString parses configuration from YAML source. Environment
// variable placeholders of the form ${VAR} in string values are expanded
// after parsing; unset variables expand to the empty string.
func (l *Loader) LoadFromString(source string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(source), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Back-fill names so sets and models know their own map key, and
	// expand environment placeholders in every string value.
	for name, set := range cfg.Sets {
		if set == nil {
			set = &ContextSet{}
			cfg.Sets[name] = set
		}
		set.Name = name
		set.Description = expandEnvPlaceholders(set.Description)
		for i, pattern := range set.Match {
			set.Match[i] = expandEnvPlaceholders(pattern)
		}
	}
	for name, model := range cfg.Models {
		if model == nil {
			model = &ModelConfig{}
			cfg.Models[name] = model
		}
		model.Name = name
		model.Provider = expandEnvPlaceholders(model.Provider)
		model.APIKey = expandEnvPlaceholders(model.APIKey)
		model.Model = expandEnvPlaceholders(model.Model)
		model.Description = expandEnvPlaceholders(model.Description)
	}

	return &cfg, nil
}

// expandEnvPlaceholders replaces ${VAR} occurrences with the value of the
// environment variable VAR. Unset variables yield an empty string; the
// provider layer reports the resulting empty credential.
func expandEnvPlaceholders(value string) string {
	var out strings.Builder
	for {
		start := strings.Index(value, "${")
		if start < 0 {
			out.WriteString(value)
			return out.String()
		}
		end := strings.Index(value[start:], "}")
		if end < 0 {
			out.WriteString(value)
			return out.String()
		}
		end += start

		out.WriteString(value[:start])
		out.WriteString(os.Getenv(value[start+2 : end]))
		value = value[end+1:]
	}
}
