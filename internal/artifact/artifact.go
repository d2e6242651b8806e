// Package artifact persists run artifacts under content-addressed,
// step-ordered filenames.
//
// Every save goes through the same sequence: serialize to
// "<prefix>_temp.<ext>", hash the temp file, take the next global step from
// the run context, and rename the temp file to
//
//	<step:03d>_<timestamp><step%100:02d>_<hash8>_<prefix>.<ext>
//
// The artifact kinds form a closed set: Table, Model, Metrics and Chart.
package artifact

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

// Kind identifies an artifact variant.
type Kind int

// Artifact kinds.
const (
	KindUnknown Kind = iota
	KindTable
	KindModel
	KindMetrics
	KindChart
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindModel:
		return "model"
	case KindMetrics:
		return "metrics"
	case KindChart:
		return "chart"
	default:
		return "unknown"
	}
}

// Extension is the default file extension for the kind.
func (k Kind) Extension() string {
	switch k {
	case KindTable:
		return "csv"
	case KindModel:
		return "joblib"
	case KindMetrics:
		return "json"
	case KindChart:
		return "html"
	default:
		return ""
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{KindTable, KindModel, KindMetrics, KindChart} {
		if k.String() == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// DefaultSubdir is the run subdirectory used when a caller passes "".
func (k Kind) DefaultSubdir() string {
	switch k {
	case KindTable:
		return runctx.DataOpsDir
	case KindModel, KindMetrics:
		return runctx.MLOpsDir
	case KindChart:
		return runctx.VizOpsDir
	default:
		return ""
	}
}

// Artifact is an in-memory value that can be persisted. The interface is
// sealed; use one of the variants in this package.
type Artifact interface {
	Kind() Kind
	Extension() string
	sealed()
}

// Table is tabular data, persisted as CSV with a header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Kind implements Artifact.
func (Table) Kind() Kind { return KindTable }

// Extension implements Artifact.
func (Table) Extension() string { return KindTable.Extension() }

func (Table) sealed() {}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// ModelEncoder writes a trained model in its binary form. The bytes are
// opaque to this package.
type ModelEncoder interface {
	EncodeModel(w io.Writer) error
}

// ModelEncoderFunc adapts a function to ModelEncoder.
type ModelEncoderFunc func(w io.Writer) error

// EncodeModel implements ModelEncoder.
func (f ModelEncoderFunc) EncodeModel(w io.Writer) error { return f(w) }

// Model is a serialized model blob.
type Model struct {
	Encoder ModelEncoder

	// Format overrides the file extension (default "joblib").
	Format string
}

// Kind implements Artifact.
func (Model) Kind() Kind { return KindModel }

// Extension implements Artifact.
func (m Model) Extension() string {
	if m.Format != "" {
		return m.Format
	}
	return KindModel.Extension()
}

func (Model) sealed() {}

// Metrics is a mapping persisted as indented JSON.
type Metrics map[string]any

// Kind implements Artifact.
func (Metrics) Kind() Kind { return KindMetrics }

// Extension implements Artifact.
func (Metrics) Extension() string { return KindMetrics.Extension() }

func (Metrics) sealed() {}

// Chart is a renderable document persisted as self-contained HTML.
type Chart struct {
	Component templ.Component
}

// Kind implements Artifact.
func (Chart) Kind() Kind { return KindChart }

// Extension implements Artifact.
func (Chart) Extension() string { return KindChart.Extension() }

func (Chart) sealed() {}

// ChartFunc builds a Chart from a render function.
func ChartFunc(render func(ctx context.Context, w io.Writer) error) Chart {
	return Chart{Component: templ.ComponentFunc(render)}
}
