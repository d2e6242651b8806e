package config

// Default configuration values.
const (
	DefaultRootDir   = "output"
	DefaultStateFile = ".leaptrack/state.db"
	DefaultMacrosDir = "macros"
)

// DefaultSnapshotFiles are the configuration files copied into each run.
var DefaultSnapshotFiles = []string{"config.yaml", "dataops.yaml", "infrastructure.yml"}

// ApplyDefaults applies default values to a Config.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.Output.RootDir == "" {
		c.Output.RootDir = DefaultRootDir
	}
	if c.SnapshotFiles == nil {
		c.SnapshotFiles = append([]string(nil), DefaultSnapshotFiles...)
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.MacrosDir == "" {
		c.MacrosDir = DefaultMacrosDir
	}
	ApplyDatabaseDefaults(c.Database)
}

// ApplyDatabaseDefaults applies default values based on the database type.
func ApplyDatabaseDefaults(d *DatabaseConfig) {
	if d == nil {
		return
	}
	if d.Type == "postgres" && d.Port == 0 {
		d.Port = 5432
	}
}
