package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/analysislog"
	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/cli/config"
	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	"github.com/leapstack-labs/leaptrack/internal/macro"
	"github.com/leapstack-labs/leaptrack/internal/mlops"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
	"github.com/leapstack-labs/leaptrack/internal/state"
	"github.com/leapstack-labs/leaptrack/internal/vizops"
	"github.com/leapstack-labs/leaptrack/pkg/adapter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer

	Runs      *runctx.Manager
	Artifacts *artifact.Service
	Journal   *analysislog.Log
	DataOps   *dataops.Service
	MLOps     *mlops.Service
	VizOps    *vizops.Service

	// Index is nil when the artifact index could not be opened.
	Index *state.SQLiteStore
}

// NewCommandContext wires the run context, the artifact service and the
// tool services. Returns the context and a cleanup function that must be
// called (typically via defer).
//
// The artifact index is advisory: if it cannot be opened the command still
// runs and saves are simply not indexed.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx := NewCommandContextWithoutServices(cmd)
	cfg, logger := cmdCtx.Cfg, cmdCtx.Logger

	macros, err := macro.LoadAndRegister(cfg.MacrosDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load macros: %w", err)
	}
	if macros.Len() > 0 {
		logger.Debug("macros loaded", slog.Any("namespaces", macros.Namespaces()))
	}

	index, err := openIndex(cmd.Context(), cfg.StatePath, logger)
	if err != nil {
		logger.Warn("artifact index unavailable", slog.String("path", cfg.StatePath), slog.String("error", err.Error()))
		index = nil
	}

	artifactOpts := []artifact.Option{artifact.WithLogger(logger)}
	if index != nil {
		artifactOpts = append(artifactOpts, artifact.WithRecorder(index))
	}

	cmdCtx.Runs = runctx.NewManagerFromConfig(&cfg.Config, runctx.WithLogger(logger), runctx.WithResume())
	cmdCtx.Artifacts = artifact.NewService(cmdCtx.Runs, artifactOpts...)
	cmdCtx.Journal = analysislog.New(cmdCtx.Runs, analysislog.WithLogger(logger))

	var schema string
	if cfg.Database != nil {
		schema = cfg.Database.Schema
	}
	cmdCtx.DataOps = dataops.New(cmdCtx.Artifacts,
		dataops.WithLogger(logger),
		dataops.WithSchema(schema),
		dataops.WithMacros(macros.Globals()),
	)
	cmdCtx.MLOps = mlops.New(cmdCtx.Artifacts, mlops.WithLogger(logger), mlops.WithThreshold(cfg.Threshold))
	cmdCtx.VizOps = vizops.New(cmdCtx.Artifacts, vizops.WithLogger(logger), vizops.WithThreshold(cfg.Threshold))
	cmdCtx.Index = index

	cleanup := func() {
		if index != nil {
			_ = index.Close()
		}
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutServices creates a CommandContext with only the
// config, logger and renderer. Useful for commands that never save.
func NewCommandContextWithoutServices(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// warehouseTools returns a dataops service for commands that read from or
// write to the warehouse without saving artifacts, so no run directory is
// created.
func warehouseTools(cmdCtx *CommandContext) *dataops.Service {
	var schema string
	if cmdCtx.Cfg.Database != nil {
		schema = cmdCtx.Cfg.Database.Schema
	}
	return dataops.New(nil, dataops.WithLogger(cmdCtx.Logger), dataops.WithSchema(schema))
}

// openIndex opens and migrates the SQLite artifact index.
func openIndex(ctx context.Context, path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(ctx, path); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// requireIndex opens the index for commands that read from it.
func requireIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if _, err := os.Stat(cfg.StatePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact index not found at %s (save an artifact first)", cfg.StatePath)
	}
	return openIndex(ctx, cfg.StatePath, logger)
}

// openAdapter creates and connects the configured warehouse adapter.
func openAdapter(ctx context.Context, cmdCtx *CommandContext) (adapter.Adapter, error) {
	dbCfg, err := cmdCtx.Cfg.RequireDatabase()
	if err != nil {
		return nil, err
	}
	adapterCfg := dbCfg.AdapterConfig()
	if adapterCfg.Path != "" && adapterCfg.Path != ":memory:" && !filepath.IsAbs(adapterCfg.Path) {
		adapterCfg.Path = filepath.Join(cmdCtx.Cfg.ProjectRoot, adapterCfg.Path)
	}
	db, err := adapter.NewAdapter(adapterCfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, adapterCfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", adapterCfg.Type, err)
	}
	return db, nil
}

// readSQL takes SQL from the arguments, a file, or piped stdin.
func readSQL(cmd *cobra.Command, args []string, inputFile string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case inputFile != "":
		content, err := os.ReadFile(inputFile) //nolint:gosec // user-supplied query file
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(content), nil
	}
	if stdinIsTerminal(cmd) {
		return "", fmt.Errorf("no SQL given: pass it as an argument, with --input, or on stdin")
	}
	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", fmt.Errorf("no SQL given: pass it as an argument, with --input, or on stdin")
	}
	return string(content), nil
}

// stdinIsTerminal reports whether the command reads from an interactive
// terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
