// Package vizops renders evaluation charts as self-contained HTML documents
// and saves them through the artifact service.
package vizops

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	"github.com/leapstack-labs/leaptrack/internal/mlops"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// Artifact prefixes written by the tools.
const (
	PrefixROCCurve          = "roc_curve"
	PrefixCalibrationCurve  = "calibration_curve"
	PrefixConfusionMatrix   = "confusion_matrix"
	PrefixFeatureImportance = "feature_importance"
)

// MaxFeatures is how many features the importance chart shows.
const MaxFeatures = 20

// Service builds charts and persists them under "vizops" by default.
type Service struct {
	artifacts *artifact.Service
	logger    *slog.Logger
	subdir    string
	threshold float64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSubdir overrides the run subdirectory charts are saved into.
func WithSubdir(subdir string) Option {
	return func(s *Service) {
		s.subdir = subdir
	}
}

// WithThreshold sets the decision threshold for the confusion matrix.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// New creates a vizops Service.
func New(artifacts *artifact.Service, opts ...Option) *Service {
	s := &Service{
		artifacts: artifacts,
		logger:    slog.New(slog.DiscardHandler),
		threshold: mlops.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) save(ctx context.Context, c Chart, prefix string) (string, error) {
	path, err := s.artifacts.SaveChart(ctx, artifact.Chart{Component: c.Component()}, prefix, s.subdir)
	if err != nil {
		return "", err
	}
	s.logger.Debug("rendered chart", slog.String("prefix", prefix))
	return path, nil
}

// ROCChart builds the ROC line chart with the chance diagonal.
func ROCChart(points []mlops.ROCPoint, auc float64) LineChart {
	pts := make([]Point, len(points))
	for i, p := range points {
		pts[i] = Point{X: p.FPR, Y: p.TPR}
	}
	return LineChart{
		Title:    fmt.Sprintf("ROC Curve (AUC = %.3f)", auc),
		XLabel:   "False Positive Rate",
		YLabel:   "True Positive Rate",
		Series:   []Series{{Name: "ROC", Points: pts}},
		Diagonal: true,
		Domain:   UnitDomain,
	}
}

// CalibrationChart builds the reliability diagram.
func CalibrationChart(points []mlops.CalibrationPoint) LineChart {
	pts := make([]Point, len(points))
	for i, p := range points {
		pts[i] = Point{X: p.ProbPred, Y: p.ProbTrue}
	}
	return LineChart{
		Title:    "Calibration Curve",
		XLabel:   "Mean Predicted Probability",
		YLabel:   "Fraction of Positives",
		Series:   []Series{{Name: "Calibration", Points: pts, Markers: true}},
		Diagonal: true,
		Domain:   UnitDomain,
	}
}

// ConfusionChart builds the 2x2 confusion matrix heatmap.
func ConfusionChart(c mlops.Confusion, threshold float64) Heatmap {
	return Heatmap{
		Title:   fmt.Sprintf("Confusion Matrix (Threshold=%s)", strconv.FormatFloat(threshold, 'f', -1, 64)),
		XLabel:  "Predicted",
		YLabel:  "Actual",
		Columns: []string{"Negative", "Positive"},
		Rows:    []string{"Negative", "Positive"},
		Values: [][]float64{
			{float64(c.TN), float64(c.FP)},
			{float64(c.FN), float64(c.TP)},
		},
	}
}

// Importance is one feature's importance score.
type Importance struct {
	Feature string
	Value   float64
}

// FeatureImportanceChart sorts importances descending and keeps the top
// MaxFeatures. Ties keep their input order.
func FeatureImportanceChart(importances []Importance) BarChart {
	sorted := make([]Importance, len(importances))
	copy(sorted, importances)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })
	if len(sorted) > MaxFeatures {
		sorted = sorted[:MaxFeatures]
	}
	bars := make([]Bar, len(sorted))
	for i, imp := range sorted {
		bars[i] = Bar{Label: imp.Feature, Value: imp.Value}
	}
	return BarChart{Title: "Feature Importance", XLabel: "Importance", Bars: bars}
}

// SaveROC renders and saves a ROC curve.
func (s *Service) SaveROC(ctx context.Context, points []mlops.ROCPoint, auc float64) (string, error) {
	return s.save(ctx, ROCChart(points, auc), PrefixROCCurve)
}

// SaveCalibration renders and saves a calibration curve.
func (s *Service) SaveCalibration(ctx context.Context, points []mlops.CalibrationPoint) (string, error) {
	return s.save(ctx, CalibrationChart(points), PrefixCalibrationCurve)
}

// SaveConfusionMatrix renders and saves a confusion matrix.
func (s *Service) SaveConfusionMatrix(ctx context.Context, c mlops.Confusion) (string, error) {
	return s.save(ctx, ConfusionChart(c, s.threshold), PrefixConfusionMatrix)
}

// SaveFeatureImportance renders and saves the top feature importances.
func (s *Service) SaveFeatureImportance(ctx context.Context, importances []Importance) (string, error) {
	if len(importances) == 0 {
		return "", fmt.Errorf("no feature importances")
	}
	return s.save(ctx, FeatureImportanceChart(importances), PrefixFeatureImportance)
}

// Plots holds the paths written by PlotEvaluation.
type Plots struct {
	ROC         string `json:"roc_curve"`
	Calibration string `json:"calibration_curve"`
	Confusion   string `json:"confusion_matrix"`
}

// PlotEvaluation evaluates a scored CSV and saves its ROC curve, calibration
// curve and confusion matrix, in that order.
func (s *Service) PlotEvaluation(ctx context.Context, path, targetCol, scoreCol string) (*Plots, error) {
	if targetCol == "" {
		targetCol = mlops.DefaultTargetColumn
	}
	if scoreCol == "" {
		scoreCol = mlops.DefaultScoreColumn
	}
	labels, scores, err := mlops.ReadScored(path, targetCol, scoreCol)
	if err != nil {
		return nil, err
	}
	eval, err := mlops.Evaluate(labels, scores, s.threshold)
	if err != nil {
		return nil, err
	}

	var plots Plots
	if plots.ROC, err = s.SaveROC(ctx, eval.ROC, eval.Metrics.AUC); err != nil {
		return nil, err
	}
	if plots.Calibration, err = s.SaveCalibration(ctx, eval.Calibration); err != nil {
		return nil, err
	}
	if plots.Confusion, err = s.SaveConfusionMatrix(ctx, eval.Confusion); err != nil {
		return nil, err
	}
	return &plots, nil
}

// PlotFeatureImportance reads feature/importance pairs from a CSV and saves
// the bar chart.
func (s *Service) PlotFeatureImportance(ctx context.Context, path, featureCol, valueCol string) (string, error) {
	if featureCol == "" {
		featureCol = "feature"
	}
	if valueCol == "" {
		valueCol = "importance"
	}
	t, err := dataops.ReadTable(path)
	if err != nil {
		return "", err
	}
	fi, vi := -1, -1
	for i, c := range t.Columns {
		switch c {
		case featureCol:
			fi = i
		case valueCol:
			vi = i
		}
	}
	if fi < 0 {
		return "", fmt.Errorf("feature %w: %q", dataops.ErrColumnNotFound, featureCol)
	}
	if vi < 0 {
		return "", fmt.Errorf("importance %w: %q", dataops.ErrColumnNotFound, valueCol)
	}

	importances := make([]Importance, 0, len(t.Rows))
	for i, row := range t.Rows {
		if starctx.IsNull(row[vi]) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[vi]), 64)
		if err != nil {
			return "", fmt.Errorf("row %d: invalid importance %q", i+1, row[vi])
		}
		importances = append(importances, Importance{Feature: row[fi], Value: v})
	}
	return s.SaveFeatureImportance(ctx, importances)
}
