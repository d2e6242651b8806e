// Package cli provides the command-line interface for leaptrack.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/cli/commands"
	"github.com/leapstack-labs/leaptrack/internal/cli/config"
	"github.com/spf13/cobra"

	// Warehouse adapters register themselves with the adapter registry.
	_ "github.com/leapstack-labs/leaptrack/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leaptrack/pkg/adapters/postgres"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0"

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leaptrack",
		Short: "leaptrack - experiment tracking with content-addressed artifacts",
		Long: `leaptrack runs data extraction, model evaluation and charting steps and saves
every result into a timestamped run directory.

Each artifact file name records its global step, the run timestamp, a
content hash and a prefix, so the files of a run sort in the order they
were produced:

  output/20240101_120000/dataops/001_20240101_12000001_3f2a9c1b_query_result.csv`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				for _, f := range cfg.Files {
					logger.Debug("using config file", slog.String("path", f))
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("root-dir", "", "Directory holding run directories (default: output)")
	rootCmd.PersistentFlags().String("state", "", "Path to the artifact index")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().Float64("threshold", config.DefaultThreshold, "Decision threshold for classification metrics")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	// dataops
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(commands.NewLoadCommand())
	rootCmd.AddCommand(commands.NewProfileCommand())
	rootCmd.AddCommand(commands.NewJoinCommand())
	rootCmd.AddCommand(commands.NewAggregateCommand())
	rootCmd.AddCommand(commands.NewDeriveCommand())
	rootCmd.AddCommand(commands.NewMacrosCommand())
	rootCmd.AddCommand(commands.NewDatesCommand())
	rootCmd.AddCommand(commands.NewBinCommand())
	// mlops
	rootCmd.AddCommand(commands.NewSplitCommand())
	rootCmd.AddCommand(commands.NewBacktestCommand())
	rootCmd.AddCommand(commands.NewModelCommand())
	// vizops
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(commands.NewLogCommand())
	// index
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(commands.NewArtifactsCommand())
	rootCmd.AddCommand(commands.NewIndexCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// parseable in json and markdown modes.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command until it returns or ctx is cancelled.
// Errors are printed to stderr before being returned.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	generators := map[string]func(*cobra.Command, io.Writer) error{
		"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
		"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
		"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
		"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
	}

	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for leaptrack and write it to stdout.

  $ source <(leaptrack completion bash)
  $ leaptrack completion zsh > "${fpath[1]}/_leaptrack"
  $ leaptrack completion fish | source`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generators[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}
