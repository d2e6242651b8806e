package commands

import (
	"fmt"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/mlops"
	"github.com/spf13/cobra"
)

// SplitOptions holds options for the split command.
type SplitOptions struct {
	DateCol string
	Cutoff  string
}

// NewSplitCommand creates the split command.
func NewSplitCommand() *cobra.Command {
	opts := &SplitOptions{}

	cmd := &cobra.Command{
		Use:   "split <csv>",
		Short: "Split a dataset into train and test by date",
		Long: `Split a CSV dataset at a cutoff date. Rows dated before the cutoff are saved
as "train_split" and rows on or after it as "test_split", both in the mlops
directory of the current run. Rows with a missing date are dropped.`,
		Example: `  leaptrack split features.csv --date-col admit_date --cutoff 2023-07-01`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.DateCol, "date-col", "", "Date column to split on (required)")
	cmd.Flags().StringVar(&opts.Cutoff, "cutoff", "", "First date of the test set (required)")
	_ = cmd.MarkFlagRequired("date-col")
	_ = cmd.MarkFlagRequired("cutoff")
	return cmd
}

func runSplit(cmd *cobra.Command, path string, opts *SplitOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	split, err := cmdCtx.MLOps.SplitTimeSeries(cmd.Context(), path, opts.DateCol, opts.Cutoff)
	if err != nil {
		return err
	}
	return renderSaved(cmdCtx.Renderer, split.Train, split.Test)
}

// BacktestOptions holds options for the backtest command.
type BacktestOptions struct {
	Target string
	Score  string
	Plot   bool
}

// backtestOutput is the JSON shape of the backtest command.
type backtestOutput struct {
	Metrics     mlops.Metrics `json:"metrics"`
	MetricsFile string        `json:"metrics_file"`
	PlotsFile   string        `json:"plots_file"`
	Charts      []string      `json:"charts,omitempty"`
}

// NewBacktestCommand creates the backtest command.
func NewBacktestCommand() *cobra.Command {
	opts := &BacktestOptions{}

	cmd := &cobra.Command{
		Use:   "backtest <scored.csv>",
		Short: "Evaluate a scored test set",
		Long: `Compute AUC, F1, precision and recall for a CSV holding 0/1 labels and
predicted probabilities. The metrics are saved as "evaluation_metrics" and
the ROC and calibration curve points as "plots_data".

Predictions count as positive when the score is above --threshold.
With --plot the ROC curve, calibration curve and confusion matrix are
also rendered into the vizops directory.`,
		Example: `  leaptrack backtest scored.csv
  leaptrack backtest scored.csv --target readmitted --score prob --threshold 0.3 --plot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", mlops.DefaultTargetColumn, "Column holding 0/1 labels")
	cmd.Flags().StringVar(&opts.Score, "score", mlops.DefaultScoreColumn, "Column holding predicted probabilities")
	cmd.Flags().BoolVar(&opts.Plot, "plot", false, "Also render evaluation charts")
	return cmd
}

func runBacktest(cmd *cobra.Command, path string, opts *BacktestOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.MLOps.Backtest(cmd.Context(), path, opts.Target, opts.Score)
	if err != nil {
		return err
	}

	out := backtestOutput{
		Metrics:     res.Metrics,
		MetricsFile: res.MetricsFile,
		PlotsFile:   res.PlotsFile,
	}
	if opts.Plot {
		plots, err := cmdCtx.VizOps.PlotEvaluation(cmd.Context(), path, opts.Target, opts.Score)
		if err != nil {
			return err
		}
		out.Charts = []string{plots.ROC, plots.Calibration, plots.Confusion}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Backtest")
	r.KeyValue("AUC", fmt.Sprintf("%.4f", out.Metrics.AUC))
	r.KeyValue("F1", fmt.Sprintf("%.4f", out.Metrics.F1))
	r.KeyValue("Precision", fmt.Sprintf("%.4f", out.Metrics.Precision))
	r.KeyValue("Recall", fmt.Sprintf("%.4f", out.Metrics.Recall))
	r.Println("")
	return renderSaved(r, append([]string{out.MetricsFile, out.PlotsFile}, out.Charts...)...)
}

// NewModelCommand creates the model command.
func NewModelCommand() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "model <file>",
		Short: "Register a trained model file as an artifact",
		Long: `Copy a model file produced by an external trainer into the mlops directory
of the current run, named "<algorithm>_model". The file's extension is kept
and its content hash becomes part of the artifact name.`,
		Example: `  leaptrack model ./xgb.joblib --algorithm xgboost`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := cmdCtx.MLOps.SaveModelFile(cmd.Context(), args[0], algorithm)
			if err != nil {
				return err
			}
			return renderSaved(cmdCtx.Renderer, path)
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Algorithm name used in the artifact prefix (required)")
	_ = cmd.MarkFlagRequired("algorithm")
	return cmd
}
