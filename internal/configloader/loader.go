// Package configloader discovers and loads the .cedar.yaml configuration
// used by the CLI: log level, color mode, parse limits, and language
// overrides. The file comes from the explicit --config path when given,
// otherwise from the CEDAR_CONFIG environment variable, otherwise from
// the nearest .cedar.yaml found upward from the working directory; with
// none of these, the defaults apply. CLI flags override loaded values.
package configloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileName is the project configuration file discovered upward
// from the working directory.
const configFileName = ".cedar.yaml"

// envConfigPath overrides config discovery when set.
const envConfigPath = "CEDAR_CONFIG"

// Config is the CLI configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Color is one of auto, always, never.
	Color string `yaml:"color"`

	// Language forces a language instead of filename detection.
	Language string `yaml:"language"`

	// TimeoutMicros bounds each parse; 0 disables the deadline.
	TimeoutMicros uint64 `yaml:"timeout_micros"`

	// OperationLimit bounds driver steps per parse; 0 disables it.
	OperationLimit uint64 `yaml:"operation_limit"`

	// MatchLimit bounds in-flight query states.
	MatchLimit uint32 `yaml:"match_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Color:    "auto",
	}
}

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// WorkingDir is the directory to search from; defaults to the
	// current working directory.
	WorkingDir string

	// ExplicitPath is the --config flag value; discovery is skipped
	// when set.
	ExplicitPath string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path := opts.ExplicitPath
	if path == "" {
		path = os.Getenv(envConfigPath)
	}
	if path == "" {
		dir := opts.WorkingDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("configloader: %w", err)
			}
			dir = wd
		}
		path = discover(dir)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if opts.ExplicitPath == "" && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("configloader: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("configloader: parse %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configloader: %s: %w", path, err)
	}
	return cfg, nil
}

// discover walks upward from dir looking for the project config file.
func discover(dir string) string {
	for {
		candidate := filepath.Join(dir, configFileName)
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

func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	switch cfg.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color %q", cfg.Color)
	}
	return nil
}
