package config

import "path/filepath"

// ConfigFileNames are merged in order; later files override earlier keys.
var ConfigFileNames = []string{"config.yaml", "dataops.yaml"}

// ResolvePaths makes relative output, snapshot, state and macro paths
// relative to baseDir.
func ResolvePaths(c *Config, baseDir string) {
	c.Output.RootDir = resolve(c.Output.RootDir, baseDir)
	for i, f := range c.SnapshotFiles {
		c.SnapshotFiles[i] = resolve(f, baseDir)
	}
	c.StatePath = resolve(c.StatePath, baseDir)
	c.MacrosDir = resolve(c.MacrosDir, baseDir)
}

func resolve(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
