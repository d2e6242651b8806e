// Package mlops implements the model evaluation tools: time-based splits,
// backtest metrics and curve data, and model persistence.
package mlops

import (
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

// Artifact prefixes written by the tools.
const (
	PrefixTrainSplit        = "train_split"
	PrefixTestSplit         = "test_split"
	PrefixEvaluationMetrics = "evaluation_metrics"
	PrefixPlotsData         = "plots_data"
)

// DefaultTargetColumn is the label column used when none is given.
const DefaultTargetColumn = "readmission_30d"

// DefaultThreshold turns scores into predicted labels.
const DefaultThreshold = 0.5

// Service runs mlops tools and persists their outputs under "mlops".
type Service struct {
	artifacts *artifact.Service
	logger    *slog.Logger
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

// WithThreshold sets the decision threshold for predicted labels.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.threshold = threshold
	}
}

// New creates an mlops Service.
func New(artifacts *artifact.Service, opts ...Option) *Service {
	s := &Service{
		artifacts: artifacts,
		logger:    slog.New(slog.DiscardHandler),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const subdir = runctx.MLOpsDir
