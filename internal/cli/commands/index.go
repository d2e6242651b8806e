package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/state"
	"github.com/spf13/cobra"

	// sqlite driver for read-only index queries.
	_ "modernc.org/sqlite"
)

// openIndexReadOnly opens the artifact index in read-only mode.
func openIndexReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("artifact index not found at %s (save an artifact first)", path)
	}
	return sql.Open("sqlite", "file:"+path+"?mode=ro")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List indexed runs",
		Long:  `List runs recorded in the artifact index, most recent first.`,
		Example: `  leaptrack runs
  leaptrack runs --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)
	index, err := requireIndex(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	runs, err := index.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{run.ID, run.Timestamp, strconv.Itoa(run.ArtifactCount), run.Dir}
	}
	return r.Table([]string{"ID", "Timestamp", "Artifacts", "Dir"}, rows)
}

// ArtifactsOptions holds options for the artifacts command.
type ArtifactsOptions struct {
	Run    string
	Kind   string
	Prefix string
	Hash   string
	Limit  int
}

// NewArtifactsCommand creates the artifacts command.
func NewArtifactsCommand() *cobra.Command {
	opts := &ArtifactsOptions{}

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List indexed artifacts",
		Long: `List artifacts recorded in the artifact index, oldest run first and in step
order within a run. Filters combine with AND.`,
		Example: `  leaptrack artifacts
  leaptrack artifacts --kind chart
  leaptrack artifacts --hash 3f2a9c1b -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArtifacts(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Run, "run", "", "Only artifacts of this run ID")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Only artifacts of this kind: table, model, metrics, chart")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only artifacts with this prefix")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "Only artifacts with this content hash")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of artifacts (0 for all)")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "model", "metrics", "chart"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runArtifacts(cmd *cobra.Command, opts *ArtifactsOptions) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)
	index, err := requireIndex(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	artifacts, err := index.ListArtifacts(cmd.Context(), state.ArtifactFilter{
		RunID:  opts.Run,
		Kind:   opts.Kind,
		Prefix: opts.Prefix,
		Hash:   opts.Hash,
		Limit:  opts.Limit,
	})
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if artifacts == nil {
			artifacts = []*state.Artifact{}
		}
		return r.JSON(artifacts)
	}

	rows := make([][]string, len(artifacts))
	for i, a := range artifacts {
		rows[i] = []string{strconv.Itoa(a.Step), a.Kind, a.Prefix, a.Hash, a.Path}
	}
	return r.Table([]string{"Step", "Kind", "Prefix", "Hash", "Path"}, rows)
}

// NewIndexCommand creates the index command.
func NewIndexCommand() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "index [SQL]",
		Short: "Query the artifact index",
		Long: `Run read-only SQL against the SQLite artifact index. The "runs" table holds
one row per run directory and "artifacts" one row per saved file.

When invoked without arguments from a terminal, enters interactive REPL mode.`,
		Example: `  # Interactive REPL
  leaptrack index

  # Execute SQL directly
  leaptrack index "SELECT prefix, COUNT(*) FROM artifacts GROUP BY prefix"

  # List available tables
  leaptrack index tables

  # Show schema for a table
  leaptrack index schema artifacts`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutServices(cmd)
			if len(args) == 0 && input == "" && stdinIsTerminal(cmd) {
				return runIndexREPL(cmd, cmdCtx)
			}
			sqlQuery, err := readSQL(cmd, args, input)
			if err != nil {
				return err
			}
			return queryIndex(cmd.Context(), cmdCtx, sqlQuery)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newIndexTablesCommand())
	cmd.AddCommand(newIndexSchemaCommand())
	return cmd
}

func newIndexTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the artifact index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutServices(cmd)
			return withIndexDB(cmdCtx, func(db *sql.DB) error {
				return listIndexTables(cmd.Context(), cmdCtx.Renderer, db)
			})
		},
	}
}

func newIndexSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of an index table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutServices(cmd)
			return withIndexDB(cmdCtx, func(db *sql.DB) error {
				return describeIndexTable(cmd.Context(), cmdCtx.Renderer, db, args[0])
			})
		},
	}
}

// withIndexDB opens the index read-only for the duration of fn.
func withIndexDB(cmdCtx *CommandContext, fn func(db *sql.DB) error) error {
	db, err := openIndexReadOnly(cmdCtx.Cfg.StatePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func queryIndex(ctx context.Context, cmdCtx *CommandContext, sqlQuery string) error {
	return withIndexDB(cmdCtx, func(db *sql.DB) error {
		return runIndexQuery(ctx, cmdCtx.Renderer, db, sqlQuery)
	})
}

func runIndexQuery(ctx context.Context, r *output.Renderer, db *sql.DB, sqlQuery string, args ...any) error {
	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(r, rows)
}

func listIndexTables(ctx context.Context, r *output.Renderer, db *sql.DB) error {
	return runIndexQuery(ctx, r, db, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		AND name NOT LIKE 'goose_%'
		ORDER BY name`)
}

func describeIndexTable(ctx context.Context, r *output.Renderer, db *sql.DB, table string) error {
	rows, err := db.QueryContext(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	var out [][]string
	for rows.Next() {
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}

		nullable := "YES"
		if notNull == 1 {
			nullable = "NO"
		}
		defaultVal := dflt.String
		if pk > 0 {
			if defaultVal != "" {
				defaultVal += " "
			}
			defaultVal += "(primary key)"
		}
		out = append(out, []string{name, colType, nullable, defaultVal})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(out) == 0 {
		return fmt.Errorf("table not found: %s", table)
	}

	if r.EffectiveMode() == output.ModeJSON {
		cols := make([]map[string]string, len(out))
		for i, row := range out {
			cols[i] = map[string]string{"name": row[0], "type": row[1], "nullable": row[2], "default": row[3]}
		}
		return r.JSON(map[string]any{"table": table, "columns": cols})
	}
	r.Header(1, "Table: "+table)
	return r.Table([]string{"Column", "Type", "Nullable", "Default"}, out)
}
