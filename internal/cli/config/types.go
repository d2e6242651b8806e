// Package config loads the leaptrack CLI configuration.
//
// The shared settings (output root, warehouse connection, snapshot files,
// artifact index) are defined in internal/config and embedded here; this
// package adds the CLI-only fields and the layered koanf loader.
package config

import (
	sharedcfg "github.com/leapstack-labs/leaptrack/internal/config"
)

// DatabaseConfig is an alias for the shared warehouse configuration.
type DatabaseConfig = sharedcfg.DatabaseConfig

// Config holds all CLI configuration options.
type Config struct {
	sharedcfg.Config `koanf:",squash"`

	Verbose      bool    `koanf:"verbose"`
	OutputFormat string  `koanf:"format"`
	Threshold    float64 `koanf:"threshold"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
	// Files are the config files that were merged, in load order.
	Files []string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultThreshold = 0.5
	EnvPrefix        = "LEAPTRACK_"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return &sharedcfg.ConfigurationError{Key: "threshold", Reason: "must be between 0 and 1"}
	}
	return c.Config.Validate()
}
