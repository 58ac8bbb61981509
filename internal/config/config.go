// Package config loads run settings from an optional YAML file.
// Command-line flags override whatever the file sets.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInputDir  = "snapshots"
	DefaultOutputDir = "results_movements"
	DefaultLogLevel  = "info"
)

// Config holds the settings of one reconciliation run.
type Config struct {
	InputDir  string `yaml:"input"`
	OutputDir string `yaml:"output"`
	// Company restricts the run to one company token. Empty means all.
	Company    string `yaml:"company"`
	Workers    int    `yaml:"workers"`
	JSONExport bool   `yaml:"json"`
	LogLevel   string `yaml:"log_level"`
	DryRun     bool   `yaml:"dry_run"`
	Verbose    bool   `yaml:"verbose"`
}

// Default returns the settings used when no file or flag overrides them.
func Default() Config {
	return Config{
		InputDir:  DefaultInputDir,
		OutputDir: DefaultOutputDir,
		Workers:   1,
		LogLevel:  DefaultLogLevel,
	}
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected so a
// typo does not silently fall back to a default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// An empty document decodes to io.EOF; keep the defaults.
		if len(bytes.TrimSpace(data)) == 0 {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to parse YAML config (check syntax, indentation, and field names): %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config from %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the settings can drive a run.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory cannot be empty")
	}
	if c.OutputDir == "" && !c.DryRun {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
