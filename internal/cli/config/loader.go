package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	sharedcfg "github.com/leapstack-labs/leaptrack/internal/config"
	"github.com/spf13/pflag"
)

type (
	configKey struct{}
	loggerKey struct{}
)

// rootSearchDepth bounds the upward search for a project directory.
const rootSearchDepth = 10

// flagKeys maps CLI flag names to config keys where the two differ.
var flagKeys = map[string]string{
	"root-dir": "output.root_dir",
	"state":    "state_path",
	"output":   "format",
}

// Path flags resolve against the working directory, not the project root.
var pathFlags = []string{"root-dir", "state"}

func defaults() map[string]any {
	return map[string]any{
		"output.root_dir": sharedcfg.DefaultRootDir,
		"state_path":      sharedcfg.DefaultStateFile,
		"macros_dir":      sharedcfg.DefaultMacrosDir,
		"verbose":         false,
		"format":          DefaultOutput,
		"threshold":       DefaultThreshold,
	}
}

// LoadConfig merges, lowest precedence first: built-in defaults,
// config.yaml (or cfgFile), dataops.yaml, LEAPTRACK_* environment variables
// and changed flags. Relative paths from files and the environment resolve
// against the project root.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}
	root := projectRoot(cfgFile)
	files := configFiles(cfgFile, root)

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, path := range files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = root
	cfg.Files = files

	sharedcfg.ApplyDefaults(&cfg.Config)
	expandDatabaseEnvVars(cfg.Database)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sharedcfg.ResolvePaths(&cfg.Config, root)
	return &cfg, nil
}

// flagValue maps changed flags to config keys. Unchanged flags and --config
// are skipped so they do not shadow lower layers.
func flagValue(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed || f.Name == "config" {
			return "", nil
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if slices.Contains(pathFlags, f.Name) {
			if abs, err := filepath.Abs(f.Value.String()); err == nil {
				return key, abs
			}
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// projectRoot is the directory of an explicit config file, else the nearest
// ancestor of the working directory holding a config file, else the working
// directory.
func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return filepath.Dir(cfgFile)
		}
		return filepath.Dir(abs)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := searchUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// searchUpward returns the first directory at or above start that holds a
// config file, or "" when none is found within rootSearchDepth levels.
func searchUpward(start string) string {
	for dir, i := start, 0; i < rootSearchDepth; i++ {
		if len(existing(dir, sharedcfg.ConfigFileNames)) > 0 {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
	return ""
}

// configFiles lists the files to merge in load order. An explicit file
// takes config.yaml's place; dataops.yaml in the project root still merges
// on top of it.
func configFiles(cfgFile, root string) []string {
	if cfgFile == "" {
		return existing(root, sharedcfg.ConfigFileNames)
	}
	overlay := sharedcfg.ConfigFileNames[len(sharedcfg.ConfigFileNames)-1]
	files := []string{cfgFile}
	for _, f := range existing(root, []string{overlay}) {
		if !sameFile(f, cfgFile) {
			files = append(files, f)
		}
	}
	return files
}

func existing(dir string, names []string) []string {
	var found []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	return found
}

func sameFile(a, b string) bool {
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(sa, sb)
}

// envKey maps LEAPTRACK_OUTPUT__ROOT_DIR to output.root_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig returns the config stored in ctx, or the defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg := &Config{OutputFormat: DefaultOutput, Threshold: DefaultThreshold}
	sharedcfg.ApplyDefaults(&cfg.Config)
	return cfg
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger stored in ctx, or a discarding logger.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with its value. Unset or empty variables
// are left as written so a missing secret is visible in errors.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v := os.Getenv(ref[2 : len(ref)-1]); v != "" {
			return v
		}
		return ref
	})
}

func expandDatabaseEnvVars(d *DatabaseConfig) {
	if d == nil {
		return
	}
	for _, field := range []*string{&d.Host, &d.Username, &d.Password, &d.Database, &d.Path} {
		*field = expandEnvVars(*field)
	}
}
