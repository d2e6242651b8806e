package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register adapters so database validation can resolve types
	_ "github.com/leapstack-labs/leaptrack/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leaptrack/pkg/adapters/postgres"
)

func TestApplyDefaultsAndResolvePaths(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Database: &DatabaseConfig{Type: "postgres", Host: "localhost"}}

	ApplyDefaults(cfg)
	ResolvePaths(cfg, dir)

	assert.Equal(t, filepath.Join(dir, DefaultRootDir), cfg.Output.RootDir)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, filepath.Join(dir, DefaultMacrosDir), cfg.MacrosDir)
	require.Len(t, cfg.SnapshotFiles, len(DefaultSnapshotFiles))
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.SnapshotFiles[0])
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.NoError(t, cfg.Validate())
}

func TestResolvePaths_KeepsAbsolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "runs")
	cfg := &Config{Output: OutputConfig{RootDir: abs}, MacrosDir: "lib/macros"}

	ResolvePaths(cfg, "/project")
	assert.Equal(t, abs, cfg.Output.RootDir)
	assert.Equal(t, filepath.Join("/project", "lib", "macros"), cfg.MacrosDir)
	assert.Empty(t, cfg.StatePath, "unset paths stay unset")

	ResolvePaths(cfg, "")
	assert.Equal(t, filepath.Join("/project", "lib", "macros"), cfg.MacrosDir)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr string
	}{
		{
			name: "defaults only",
			cfg:  Config{Output: OutputConfig{RootDir: "output"}},
		},
		{
			name:      "empty root",
			cfg:       Config{Output: OutputConfig{RootDir: "  "}},
			wantErr:   true,
			errSubstr: "output.root_dir",
		},
		{
			name:      "database without type",
			cfg:       Config{Output: OutputConfig{RootDir: "output"}, Database: &DatabaseConfig{}},
			wantErr:   true,
			errSubstr: "database.type",
		},
		{
			name:      "unknown database type",
			cfg:       Config{Output: OutputConfig{RootDir: "output"}, Database: &DatabaseConfig{Type: "mysql"}},
			wantErr:   true,
			errSubstr: "unknown adapter type",
		},
		{
			name: "uppercase duckdb",
			cfg:  Config{Output: OutputConfig{RootDir: "output"}, Database: &DatabaseConfig{Type: "DuckDB"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_RequireDatabase(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.RequireDatabase()

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "database", cfgErr.Key)

	cfg.Database = &DatabaseConfig{Type: "postgres"}
	db, err := cfg.RequireDatabase()
	require.NoError(t, err)
	assert.Equal(t, "postgres", db.AdapterConfig().Type)
}
