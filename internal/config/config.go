// Package config loads the engine's runtime configuration: the snapshot
// memory ceiling, the maximum call depth, an optional scripted input
// source for scanf, and a verbosity flag — the struct form of the flags
// the teacher wires straight into package-level variables in
// cmd/galago/main.go, made a proper value here since one process may host
// several Engine instances across a session instead of exiting after one
// CLI invocation.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's runtime configuration.
type Config struct {
	// SnapshotCeilingBytes bounds the snapshot store's approximate memory
	// footprint; 0 means unbounded.
	SnapshotCeilingBytes uint64 `yaml:"snapshot_ceiling_bytes"`
	// MaxCallDepth bounds recursion before StackOverflow is raised.
	MaxCallDepth int `yaml:"max_call_depth"`
	// InitialInput is the scripted input scanf consumes tokens from.
	InitialInput string `yaml:"initial_input"`
	// Verbose enables development-mode (human-readable, debug-level) logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the engine's default configuration: a generous but
// nonzero snapshot ceiling, a call depth deep enough for legitimate
// recursion but shallow enough to catch runaway recursion quickly, no
// scripted input, and quiet logging.
func Default() Config {
	return Config{
		SnapshotCeilingBytes: 64 * 1024 * 1024,
		MaxCallDepth:         1000,
		InitialInput:         "",
		Verbose:              false,
	}
}

// Load reads a YAML configuration file, starting from Default() so a file
// that only overrides a subset of fields still yields a complete Config.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
