package commands

import (
	"fmt"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/spf13/cobra"
)

// LogOptions holds options for the log command.
type LogOptions struct {
	Hypothesis string
	Finding    string
	Artifacts  []string
	Subdir     string
}

// NewLogCommand creates the log command.
func NewLogCommand() *cobra.Command {
	opts := &LogOptions{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append an entry to the analysis log",
		Long: `Append a timestamped hypothesis/finding entry to analysis_log.md in the
current run. Entries go to the vizops directory unless --subdir is given.
Existing entries are never rewritten.`,
		Example: `  leaptrack log --hypothesis "Long stays predict readmission" \
    --finding "AUC 0.71 with los_days alone" \
    --artifact output/20240101_120000/mlops/004_..._evaluation_metrics.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLog(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Hypothesis, "hypothesis", "", "Hypothesis being tested (required)")
	cmd.Flags().StringVar(&opts.Finding, "finding", "", "What was found (required)")
	cmd.Flags().StringArrayVar(&opts.Artifacts, "artifact", nil, "Artifact path supporting the finding (repeatable)")
	cmd.Flags().StringVar(&opts.Subdir, "subdir", "", "Run subdirectory holding the log (default vizops)")
	_ = cmd.MarkFlagRequired("hypothesis")
	_ = cmd.MarkFlagRequired("finding")
	return cmd
}

func runLog(cmd *cobra.Command, opts *LogOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	path, err := cmdCtx.Journal.Append(cmd.Context(), opts.Hypothesis, opts.Finding, opts.Artifacts, opts.Subdir)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(map[string]string{"log": path})
	case output.ModeMarkdown:
		r.Println(output.FormatKeyValue("Logged", "`"+path+"`"))
	default:
		r.Success(fmt.Sprintf("logged to %s", r.Path(path)))
	}
	return nil
}
