package artifact

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// encode writes a in its on-disk format. Each variant has exactly one
// serializer; anything else is ErrUnsupportedKind.
func encode(ctx context.Context, w io.Writer, a Artifact) error {
	switch v := a.(type) {
	case Table:
		return encodeTable(w, v)
	case Model:
		return encodeModel(w, v)
	case Metrics:
		return encodeMetrics(w, v)
	case Chart:
		return encodeChart(ctx, w, v)
	default:
		return ErrUnsupportedKind
	}
}

func encodeTable(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d fields, want %d", i, len(row), len(t.Columns))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeModel(w io.Writer, m Model) error {
	if m.Encoder == nil {
		return fmt.Errorf("model has no encoder")
	}
	return m.Encoder.EncodeModel(w)
}

func encodeMetrics(w io.Writer, m Metrics) error {
	b, err := json.MarshalIndent(map[string]any(m), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func encodeChart(ctx context.Context, w io.Writer, c Chart) error {
	if c.Component == nil {
		return fmt.Errorf("chart has no component")
	}
	return c.Component.Render(ctx, w)
}
