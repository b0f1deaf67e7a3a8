// Package config loads run defaults from an optional YAML file, in the
// style of 1homsi-gorisk's capability.LoadPatterns: read, yaml.Unmarshal,
// wrap errors with context. Command-line flags always override a loaded
// file (cmd/taintgraph applies the merge).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the subset of run parameters a user may want to pin across
// invocations instead of repeating as flags.
type Config struct {
	Workers     int    `yaml:"workers"`
	PathCap     int    `yaml:"path_cap"`
	DepthCap    int    `yaml:"depth_cap"`
	MaxInFlight int    `yaml:"max_in_flight"`
	Output      string `yaml:"output"`
	RulesDir    string `yaml:"rules_dir"`
	Verbose     bool   `yaml:"verbose"`
}

// Default returns the built-in defaults used when no file and no flags
// override a field.
func Default() Config {
	return Config{
		Workers:     4,
		PathCap:     1024,
		DepthCap:    64,
		MaxInFlight: 0,
		Output:      "text",
		RulesDir:    "rules",
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so unset fields keep their built-in values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
