package commands

import (
	"github.com/leapstack-labs/leaptrack/internal/mlops"
	"github.com/spf13/cobra"
)

// NewPlotCommand creates the plot command group.
func NewPlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render evaluation charts",
		Long: `Render charts as self-contained HTML documents (inline SVG) and save them
into the vizops directory of the current run.`,
	}
	cmd.AddCommand(newPlotEvaluationCommand())
	cmd.AddCommand(newPlotImportanceCommand())
	return cmd
}

func newPlotEvaluationCommand() *cobra.Command {
	var target, score string

	cmd := &cobra.Command{
		Use:   "evaluation <scored.csv>",
		Short: "Render ROC, calibration and confusion matrix charts",
		Long: `Evaluate a scored CSV and save "roc_curve", "calibration_curve" and
"confusion_matrix" charts, in that order. The confusion matrix uses
--threshold.`,
		Example: `  leaptrack plot evaluation scored.csv
  leaptrack plot evaluation scored.csv --target readmitted --score prob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			plots, err := cmdCtx.VizOps.PlotEvaluation(cmd.Context(), args[0], target, score)
			if err != nil {
				return err
			}
			return renderSaved(cmdCtx.Renderer, plots.ROC, plots.Calibration, plots.Confusion)
		},
	}

	cmd.Flags().StringVar(&target, "target", mlops.DefaultTargetColumn, "Column holding 0/1 labels")
	cmd.Flags().StringVar(&score, "score", mlops.DefaultScoreColumn, "Column holding predicted probabilities")
	return cmd
}

func newPlotImportanceCommand() *cobra.Command {
	var featureCol, valueCol string

	cmd := &cobra.Command{
		Use:   "importance <csv>",
		Short: "Render a feature importance bar chart",
		Long: `Read feature/importance pairs from a CSV and save the top 20 features,
largest first, as a "feature_importance" chart.`,
		Example: `  leaptrack plot importance importances.csv
  leaptrack plot importance coefs.csv --feature name --value weight`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := cmdCtx.VizOps.PlotFeatureImportance(cmd.Context(), args[0], featureCol, valueCol)
			if err != nil {
				return err
			}
			return renderSaved(cmdCtx.Renderer, path)
		},
	}

	cmd.Flags().StringVar(&featureCol, "feature", "feature", "Column holding feature names")
	cmd.Flags().StringVar(&valueCol, "value", "importance", "Column holding importance scores")
	return cmd
}
