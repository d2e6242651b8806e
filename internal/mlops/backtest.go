package mlops

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// DefaultScoreColumn holds predicted probabilities in backtest datasets.
const DefaultScoreColumn = "score"

// BacktestResult is returned by Backtest.
type BacktestResult struct {
	Metrics     Metrics     `json:"metrics"`
	MetricsFile string      `json:"metrics_file"`
	PlotsFile   string      `json:"plots_file"`
	Evaluation  *Evaluation `json:"-"`
}

// Backtest evaluates a scored test set. targetCol holds 0/1 labels and
// scoreCol the predicted probability of the positive class. The scalar
// metrics are saved as "evaluation_metrics" and the ROC and calibration
// curve points as "plots_data".
func (s *Service) Backtest(ctx context.Context, path, targetCol, scoreCol string) (*BacktestResult, error) {
	if targetCol == "" {
		targetCol = DefaultTargetColumn
	}
	if scoreCol == "" {
		scoreCol = DefaultScoreColumn
	}

	labels, scores, err := ReadScored(path, targetCol, scoreCol)
	if err != nil {
		return nil, err
	}
	eval, err := Evaluate(labels, scores, s.threshold)
	if err != nil {
		return nil, err
	}

	metricsPath, err := s.artifacts.SaveMetrics(ctx, eval.Metrics.Artifact(), PrefixEvaluationMetrics, subdir)
	if err != nil {
		return nil, err
	}

	plots := artifact.Metrics{
		"roc_curve":         eval.ROC,
		"calibration_curve": eval.Calibration,
	}
	plotsPath, err := s.artifacts.SaveMetrics(ctx, plots, PrefixPlotsData, subdir)
	if err != nil {
		return nil, err
	}

	s.logger.Info("backtest complete",
		slog.Float64("auc", eval.Metrics.AUC),
		slog.Float64("f1", eval.Metrics.F1),
		slog.Int("rows", len(labels)),
	)
	return &BacktestResult{
		Metrics:     eval.Metrics,
		MetricsFile: metricsPath,
		PlotsFile:   plotsPath,
		Evaluation:  eval,
	}, nil
}

// ReadScored extracts 0/1 labels and scores from a CSV, skipping rows where
// either is missing.
func ReadScored(path, targetCol, scoreCol string) ([]int, []float64, error) {
	t, err := dataops.ReadTable(path)
	if err != nil {
		return nil, nil, err
	}

	ti, si := -1, -1
	for i, c := range t.Columns {
		switch c {
		case targetCol:
			ti = i
		case scoreCol:
			si = i
		}
	}
	if ti < 0 {
		return nil, nil, fmt.Errorf("target %w: %q", dataops.ErrColumnNotFound, targetCol)
	}
	if si < 0 {
		return nil, nil, fmt.Errorf("score %w: %q", dataops.ErrColumnNotFound, scoreCol)
	}

	var (
		labels []int
		scores []float64
	)
	for i, row := range t.Rows {
		if starctx.IsNull(row[ti]) || starctx.IsNull(row[si]) {
			continue
		}
		y, err := parseLabel(row[ti])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(row[si]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: invalid score %q", i+1, row[si])
		}
		labels = append(labels, y)
		scores = append(scores, p)
	}
	return labels, scores, nil
}

func parseLabel(cell string) (int, error) {
	switch strings.TrimSpace(cell) {
	case "1", "1.0", "True", "true":
		return 1, nil
	case "0", "0.0", "False", "false":
		return 0, nil
	}
	return 0, fmt.Errorf("invalid label %q", cell)
}
