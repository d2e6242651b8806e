package commands

import (
	"strconv"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	"github.com/spf13/cobra"
)

// NewProfileCommand creates the profile command.
func NewProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <csv>",
		Short: "Summarize a dataset",
		Long: `Print row and column counts, null counts, cardinality and numeric
statistics for a CSV dataset. Nothing is saved.`,
		Example: `  leaptrack profile output/20240101_120000/dataops/001_query_result00_3f2a....csv
  leaptrack profile admissions.csv -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, args[0])
		},
	}
}

func runProfile(cmd *cobra.Command, path string) error {
	cmdCtx := NewCommandContextWithoutServices(cmd)
	profile, err := warehouseTools(cmdCtx).Profile(path)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(profile)
	}

	r.Header(1, "Profile: "+path)
	r.KeyValue("Rows", strconv.Itoa(profile.Rows))
	r.KeyValue("Columns", strconv.Itoa(len(profile.Columns)))
	r.Println("")

	rows := make([][]string, len(profile.Columns))
	for i, col := range profile.Columns {
		row := []string{
			col,
			strconv.Itoa(profile.NullCounts[col]),
			strconv.Itoa(profile.Cardinality[col]),
			"", "", "", "",
		}
		if stats, ok := profile.NumericStats[col]; ok {
			row[3] = formatStat(stats.Mean)
			row[4] = formatStat(stats.Std)
			row[5] = formatStat(stats.Min)
			row[6] = formatStat(stats.Max)
		}
		rows[i] = row
	}
	return r.Table([]string{"Column", "Nulls", "Distinct", "Mean", "Std", "Min", "Max"}, rows)
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// JoinOptions holds options for the join command.
type JoinOptions struct {
	On      string
	How     string
	Preview int
}

// NewJoinCommand creates the join command.
func NewJoinCommand() *cobra.Command {
	opts := &JoinOptions{}

	cmd := &cobra.Command{
		Use:   "join <left.csv> <right.csv>",
		Short: "Join two datasets on key columns",
		Long: `Join two CSV datasets on one or more key columns and save the result as a
"joined_data" table artifact. Supported join types: inner, left, right, outer.`,
		Example: `  leaptrack join admissions.csv claims.csv --on patient_id
  leaptrack join a.csv b.csv --on patient_id,admit_date --how left`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.On, "on", "", "Comma-separated key columns (required)")
	cmd.Flags().StringVar(&opts.How, "how", dataops.JoinInner, "Join type: inner, left, right, outer")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	_ = cmd.MarkFlagRequired("on")
	_ = cmd.RegisterFlagCompletionFunc("how", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{dataops.JoinInner, dataops.JoinLeft, dataops.JoinRight, dataops.JoinOuter}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runJoin(cmd *cobra.Command, left, right string, opts *JoinOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	path, err := cmdCtx.DataOps.Join(cmd.Context(), left, right, splitList(opts.On), opts.How)
	if err != nil {
		return err
	}
	return renderTransform(cmdCtx, path, opts.Preview)
}

// AggregateOptions holds options for the aggregate command.
type AggregateOptions struct {
	By      string
	Aggs    []string
	Preview int
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand() *cobra.Command {
	opts := &AggregateOptions{}

	cmd := &cobra.Command{
		Use:   "aggregate <csv>",
		Short: "Group a dataset and aggregate columns",
		Long: `Group a CSV dataset by key columns and apply aggregations, saving the
result as an "aggregated_data" table artifact.

Aggregations are given as column:function with function one of
sum, mean, count, min, max, nunique.`,
		Example: `  leaptrack aggregate claims.csv --by patient_id --agg amount:sum --agg claim_id:count`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.By, "by", "", "Comma-separated group-by columns (required)")
	cmd.Flags().StringArrayVar(&opts.Aggs, "agg", nil, "Aggregation as column:function (repeatable)")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	_ = cmd.MarkFlagRequired("by")
	_ = cmd.MarkFlagRequired("agg")
	return cmd
}

func runAggregate(cmd *cobra.Command, path string, opts *AggregateOptions) error {
	aggs, err := dataops.ParseAggregations(opts.Aggs)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.DataOps.Aggregate(cmd.Context(), path, splitList(opts.By), aggs)
	if err != nil {
		return err
	}
	return renderTransform(cmdCtx, out, opts.Preview)
}

// DeriveOptions holds options for the derive command.
type DeriveOptions struct {
	Expr    string
	Name    string
	Preview int
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand() *cobra.Command {
	opts := &DeriveOptions{}

	cmd := &cobra.Command{
		Use:   "derive <csv>",
		Short: "Add a column computed from an expression",
		Long: `Evaluate a Starlark expression for every row and save the dataset with the
new column as a "derived_feature" table artifact.

Columns are available as variables. Numeric cells are numbers, missing
cells are None, and everything else is a string. Functions defined in
macros/<name>.star are available as <name>.<function>.`,
		Example: `  leaptrack derive admissions.csv --name long_stay --expr "los_days > 7"
  leaptrack derive claims.csv --name net --expr "billed - paid if paid != None else billed"
  leaptrack derive admissions.csv --name risk --expr "risk.score(age, los_days)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Expr, "expr", "", "Starlark expression (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Name of the new column (required)")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	_ = cmd.MarkFlagRequired("expr")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runDerive(cmd *cobra.Command, path string, opts *DeriveOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.DataOps.DeriveFeature(cmd.Context(), path, opts.Expr, opts.Name)
	if err != nil {
		return err
	}
	return renderTransform(cmdCtx, out, opts.Preview)
}

// DatesOptions holds options for the dates command.
type DatesOptions struct {
	Column   string
	Features string
	Preview  int
}

// NewDatesCommand creates the dates command.
func NewDatesCommand() *cobra.Command {
	opts := &DatesOptions{}

	cmd := &cobra.Command{
		Use:   "dates <csv>",
		Short: "Extract calendar features from a date column",
		Long: `Add year, month, day and weekday columns derived from a date column and
save the result as a "date_features" table artifact. New columns are named
<column>_<feature>. Weekday counts from Monday = 0.`,
		Example: `  leaptrack dates admissions.csv --column admit_date
  leaptrack dates admissions.csv --column admit_date --features year,weekday`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDates(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Date column (required)")
	cmd.Flags().StringVar(&opts.Features, "features", "", "Comma-separated features (default year,month,day,weekday)")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func runDates(cmd *cobra.Command, path string, opts *DatesOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.DataOps.ExtractDateFeatures(cmd.Context(), path, opts.Column, splitList(opts.Features))
	if err != nil {
		return err
	}
	return renderTransform(cmdCtx, out, opts.Preview)
}

// BinOptions holds options for the bin command.
type BinOptions struct {
	Column  string
	Bins    int
	Labels  string
	Preview int
}

// NewBinCommand creates the bin command.
func NewBinCommand() *cobra.Command {
	opts := &BinOptions{Bins: 5}

	cmd := &cobra.Command{
		Use:   "bin <csv>",
		Short: "Bucket a numeric column into equal-width bins",
		Long: `Cut a numeric column into equal-width bins, write each row's bin to a new
<column>_bin column, and save the result as a "binned_feature" table
artifact. Without --labels, bins are named after their interval, e.g.
"(10.0, 20.0]".`,
		Example: `  leaptrack bin admissions.csv --column age --bins 4
  leaptrack bin admissions.csv --column age --bins 3 --labels young,middle,old`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBin(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Numeric column (required)")
	cmd.Flags().IntVar(&opts.Bins, "bins", opts.Bins, "Number of bins")
	cmd.Flags().StringVar(&opts.Labels, "labels", "", "Comma-separated bin labels, one per bin")
	cmd.Flags().IntVar(&opts.Preview, "preview", 0, "Print the first N rows of the result")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func runBin(cmd *cobra.Command, path string, opts *BinOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := cmdCtx.DataOps.BinNumeric(cmd.Context(), path, opts.Column, opts.Bins, splitList(opts.Labels))
	if err != nil {
		return err
	}
	return renderTransform(cmdCtx, out, opts.Preview)
}

func renderTransform(cmdCtx *CommandContext, path string, preview int) error {
	if err := renderSaved(cmdCtx.Renderer, path); err != nil {
		return err
	}
	return renderPreview(cmdCtx.Renderer, path, preview)
}
