package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianzuo526/pathfuzz/pkg/distance"
)

// Config holds all configuration for pathfuzz.
type Config struct {
	// ExtractCommand is the external toolchain invocation used to dump a
	// module's call graph from its bytecode artifact. The artifact path
	// is appended as the last argument.
	ExtractCommand string `yaml:"extract_command" env:"PATHFUZZ_EXTRACT_COMMAND"`

	// MaxExtractAttempts bounds retries of a failing extraction before
	// the step fails terminally.
	MaxExtractAttempts int `yaml:"max_extract_attempts" env:"PATHFUZZ_MAX_EXTRACT_ATTEMPTS"`

	// ExtractBackoff is the base delay between extraction attempts; each
	// retry doubles it.
	ExtractBackoff time.Duration `yaml:"extract_backoff" env:"PATHFUZZ_EXTRACT_BACKOFF"`

	// Aggregation selects the strategy that folds multi-target distances
	// into one scalar.
	Aggregation string `yaml:"aggregation" env:"PATHFUZZ_AGGREGATION"`

	// Logging
	Verbose bool `yaml:"verbose" env:"PATHFUZZ_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ExtractCommand:     "opt -passes=dot-callgraph",
		MaxExtractAttempts: 5,
		ExtractBackoff:     time.Second,
		Aggregation:        "harmonic",
		Verbose:            false,
	}
}

// globalConfigFilePath returns the global config file path (~/.pathfuzz/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pathfuzz/config.yaml"
	}
	return filepath.Join(home, ".pathfuzz", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.pathfuzz/config.yaml)
func projectConfigFilePath() string {
	return ".pathfuzz/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.pathfuzz/config.yaml)
// 3. Global config (~/.pathfuzz/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PATHFUZZ_EXTRACT_COMMAND"); v != "" {
		cfg.ExtractCommand = v
	}
	if v := os.Getenv("PATHFUZZ_MAX_EXTRACT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxExtractAttempts = n
		}
	}
	if v := os.Getenv("PATHFUZZ_EXTRACT_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.ExtractBackoff = d
		}
	}
	if v := os.Getenv("PATHFUZZ_AGGREGATION"); v != "" {
		cfg.Aggregation = v
	}
	if v := os.Getenv("PATHFUZZ_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1" || v == "yes"
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.ExtractCommand == "" {
		return fmt.Errorf("extract_command is required")
	}
	if c.MaxExtractAttempts <= 0 {
		return fmt.Errorf("max_extract_attempts must be positive")
	}
	if c.ExtractBackoff < 0 {
		return fmt.Errorf("extract_backoff must be non-negative")
	}
	if _, err := distance.AggregatorByName(c.Aggregation); err != nil {
		return err
	}
	return nil
}
