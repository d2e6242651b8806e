// Package dataops implements the data extraction and feature engineering
// tools. Every tool that produces a dataset saves it through the artifact
// service and returns the saved path.
package dataops

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"go.starlark.net/starlark"
)

// Artifact prefixes written by the tools.
const (
	PrefixQueryResult    = "query_result"
	PrefixJoined         = "joined_data"
	PrefixAggregated     = "aggregated_data"
	PrefixDerivedFeature = "derived_feature"
	PrefixDateFeatures   = "date_features"
	PrefixBinnedFeature  = "binned_feature"
)

// Service runs dataops tools and persists their outputs.
type Service struct {
	artifacts *artifact.Service
	logger    *slog.Logger
	schema    string
	subdir    string
	macros    starlark.StringDict
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

// WithSchema sets the warehouse schema used for unqualified table names and
// for the query search path.
func WithSchema(schema string) Option {
	return func(s *Service) {
		s.schema = schema
	}
}

// WithSubdir overrides the run subdirectory datasets are saved into.
func WithSubdir(subdir string) Option {
	return func(s *Service) {
		s.subdir = subdir
	}
}

// WithMacros adds globals, typically macro modules, to derived-feature
// expressions.
func WithMacros(globals starlark.StringDict) Option {
	return func(s *Service) {
		s.macros = globals
	}
}

// New creates a dataops Service.
func New(artifacts *artifact.Service, opts ...Option) *Service {
	s := &Service{
		artifacts: artifacts,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) save(ctx context.Context, t artifact.Table, prefix string) (string, error) {
	return s.artifacts.SaveTable(ctx, t, prefix, s.subdir)
}
