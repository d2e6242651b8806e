// Package config provides shared configuration types for leaptrack.
// This package is decoupled from CLI concerns so the run context, the
// artifact service and library callers can load the same settings.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptrack/pkg/adapter"
)

// OutputConfig holds where run directories are created.
type OutputConfig struct {
	RootDir string `koanf:"root_dir"`
}

// DatabaseConfig holds warehouse connection settings for data extraction.
type DatabaseConfig struct {
	Type string `koanf:"type"` // postgres, duckdb

	// File-based databases (DuckDB)
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	Schema   string `koanf:"schema"`

	// Additional driver-specific options (e.g. sslmode)
	Options map[string]string `koanf:"options"`
}

// Validate checks if the database configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func (d *DatabaseConfig) Validate() error {
	if d.Type == "" {
		return &ConfigurationError{Key: "database.type", Reason: "is required"}
	}
	if !adapter.IsRegistered(strings.ToLower(d.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      d.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// AdapterConfig converts the database section into an adapter.Config.
func (d *DatabaseConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:     strings.ToLower(d.Type),
		Path:     d.Path,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		Username: d.Username,
		Password: d.Password,
		Schema:   d.Schema,
		Options:  d.Options,
	}
}

// Config holds the settings shared by every leaptrack component.
type Config struct {
	Output   OutputConfig    `koanf:"output"`
	Database *DatabaseConfig `koanf:"database"`

	// SnapshotFiles are copied into <run>/config the first time a run
	// directory is created.
	SnapshotFiles []string `koanf:"snapshot_files"`

	// StatePath is the SQLite artifact index.
	StatePath string `koanf:"state_path"`

	// MacrosDir holds *.star files exposed to derived-feature expressions.
	MacrosDir string `koanf:"macros_dir"`
}

// Validate checks the parts of the configuration the core depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output.RootDir) == "" {
		return &ConfigurationError{Key: "output.root_dir", Reason: "must not be empty"}
	}
	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("invalid database configuration: %w", err)
		}
	}
	return nil
}

// RequireDatabase returns the database section or a ConfigurationError when
// no warehouse is configured.
func (c *Config) RequireDatabase() (*DatabaseConfig, error) {
	if c.Database == nil {
		return nil, &ConfigurationError{Key: "database", Reason: "database configuration not found"}
	}
	return c.Database, nil
}

// ConfigurationError reports a required configuration value that is absent
// or unusable.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}
