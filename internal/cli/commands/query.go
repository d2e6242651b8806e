package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/pkg/adapter"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input   string
	Preview int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a warehouse query and save the result",
		Long: `Run SQL against the configured warehouse and save the result set as a
"query_result" table artifact in the dataops directory of the current run.

When database.schema is set, the session search path is set to it first.`,
		Example: `  # Execute SQL directly
  leaptrack query "SELECT * FROM admissions WHERE admit_date >= '2023-01-01'"

  # Read SQL from a file and preview the first rows
  leaptrack query -i extract.sql --preview 10

  # Pipe SQL on stdin
  cat extract.sql | leaptrack query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	sqlQuery, err := readSQL(cmd, args, opts.Input)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := openAdapter(cmd.Context(), cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	path, err := cmdCtx.DataOps.ExecuteSQL(cmd.Context(), db, sqlQuery)
	if err != nil {
		return err
	}
	if err := renderSaved(cmdCtx.Renderer, path); err != nil {
		return err
	}
	return renderPreview(cmdCtx.Renderer, path, opts.Preview)
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a warehouse table",
		Long: `Show column names and types for a warehouse table. Unqualified names are
looked up in database.schema; "schema.table" overrides it.`,
		Example: `  leaptrack schema admissions
  leaptrack schema claims.encounters -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, args[0])
		},
	}
}

func runSchema(cmd *cobra.Command, table string) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)

	db, err := openAdapter(cmd.Context(), cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	meta, err := warehouseTools(cmdCtx).TableMetadata(cmd.Context(), db, table)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		schema := make(map[string]string, len(meta.Columns))
		for _, c := range meta.Columns {
			schema[c.Name] = c.Type
		}
		return r.JSON(schema)
	}

	columns := append([]adapter.Column(nil), meta.Columns...)
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })

	rows := make([][]string, len(columns))
	for i, c := range columns {
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		rows[i] = []string{c.Name, c.Type, nullable}
	}
	r.Header(1, fmt.Sprintf("Table: %s.%s", meta.Schema, meta.Name))
	if meta.RowCount >= 0 {
		r.KeyValue("Rows", strconv.FormatInt(meta.RowCount, 10))
	}
	return r.Table([]string{"Column", "Type", "Nullable"}, rows)
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <table> <csv>",
		Short: "Load a CSV file into a warehouse table",
		Long: `Create or replace a warehouse table from a CSV file. Useful for pushing a
saved artifact back into a local DuckDB warehouse for further SQL.`,
		Example: `  leaptrack load scored output/20240101_120000/mlops/003_..._test_split.csv`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0], args[1])
		},
	}
}

func runLoad(cmd *cobra.Command, table, path string) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)

	db, err := openAdapter(cmd.Context(), cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := warehouseTools(cmdCtx).LoadTable(cmd.Context(), db, table, path); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"table": table, "source": path})
	}
	r.Success(fmt.Sprintf("loaded %s into %s", path, table))
	return nil
}
