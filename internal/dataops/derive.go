package dataops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// DeriveFeature evaluates a Starlark expression for every row and stores the
// result in newCol, replacing the column if it already exists. Columns are
// visible to the expression by name and through the "row" dict; missing
// cells are None. Macro modules configured with WithMacros are available by
// namespace. The result is saved as "derived_feature".
func (s *Service) DeriveFeature(ctx context.Context, path, expression, newCol string) (string, error) {
	if newCol == "" {
		return "", fmt.Errorf("new column name is empty")
	}
	ev, err := starctx.NewEvaluator(expression, starctx.WithFilename(newCol), starctx.WithGlobals(s.macros))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	t, err := ReadTable(path)
	if err != nil {
		return "", err
	}

	values, err := ev.EvalRows(ctx, t.Columns, t.Rows)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	cells := make([]string, len(values))
	for i, v := range values {
		gv, err := starctx.ToScalar(v)
		if err != nil {
			return "", fmt.Errorf("row %d: %w", i+1, err)
		}
		cells[i] = formatCell(gv)
	}

	out := setColumn(t, newCol, cells)
	s.logger.Debug("derived feature", slog.String("column", newCol), slog.Int("rows", out.Len()))
	return s.save(ctx, out, PrefixDerivedFeature)
}

// setColumn returns a copy of t with name set to cells, appending the column
// when it does not exist yet.
func setColumn(t artifact.Table, name string, cells []string) artifact.Table {
	idx, err := columnIndex(t, name)
	out := artifact.Table{Columns: append([]string(nil), t.Columns...)}
	if err != nil {
		out.Columns = append(out.Columns, name)
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		r := append([]string(nil), row...)
		if err != nil {
			r = append(r, cells[i])
		} else {
			r[idx] = cells[i]
		}
		out.Rows[i] = r
	}
	return out
}
