package dataops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
)

// ErrUnsupportedJoin is returned for unknown join types.
var ErrUnsupportedJoin = errors.New("unsupported join type")

// Join types.
const (
	JoinInner = "inner"
	JoinLeft  = "left"
	JoinRight = "right"
	JoinOuter = "outer"
)

// Join merges two datasets on the key columns and saves the result as
// "joined_data". Non-key columns present on both sides get "_x" and "_y"
// suffixes. Inner and left joins keep left row order, right joins keep
// right row order, and outer joins list the left join followed by the
// unmatched right rows. An empty how means inner.
func (s *Service) Join(ctx context.Context, leftPath, rightPath string, on []string, how string) (string, error) {
	if how == "" {
		how = JoinInner
	}
	switch how {
	case JoinInner, JoinLeft, JoinRight, JoinOuter:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedJoin, how)
	}
	if len(on) == 0 {
		return "", fmt.Errorf("join requires at least one key column")
	}

	left, err := ReadTable(leftPath)
	if err != nil {
		return "", err
	}
	right, err := ReadTable(rightPath)
	if err != nil {
		return "", err
	}

	joined, err := joinTables(left, right, on, how)
	if err != nil {
		return "", err
	}

	s.logger.Debug("joined datasets",
		slog.String("how", how),
		slog.Int("left_rows", left.Len()),
		slog.Int("right_rows", right.Len()),
		slog.Int("rows", joined.Len()),
	)
	return s.save(ctx, joined, PrefixJoined)
}

func joinTables(left, right artifact.Table, on []string, how string) (artifact.Table, error) {
	lkeys, err := columnIndexes(left, on)
	if err != nil {
		return artifact.Table{}, fmt.Errorf("left dataset: %w", err)
	}
	rkeys, err := columnIndexes(right, on)
	if err != nil {
		return artifact.Table{}, fmt.Errorf("right dataset: %w", err)
	}

	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}
	rightNames := make(map[string]bool, len(right.Columns))
	for _, c := range right.Columns {
		rightNames[c] = true
	}
	leftNames := make(map[string]bool, len(left.Columns))
	for _, c := range left.Columns {
		leftNames[c] = true
	}

	// Output layout: every left column, then right non-key columns.
	var columns []string
	for _, c := range left.Columns {
		if !isKey[c] && rightNames[c] {
			c += "_x"
		}
		columns = append(columns, c)
	}
	var rightCols []int
	for j, c := range right.Columns {
		if isKey[c] {
			continue
		}
		rightCols = append(rightCols, j)
		if leftNames[c] {
			c += "_y"
		}
		columns = append(columns, c)
	}

	index := make(map[string][]int)
	for j, row := range right.Rows {
		k := joinKey(row, rkeys)
		index[k] = append(index[k], j)
	}

	out := artifact.Table{Columns: columns}
	emit := func(lrow, rrow []string) {
		row := make([]string, 0, len(columns))
		if lrow != nil {
			row = append(row, lrow...)
		} else {
			row = append(row, make([]string, len(left.Columns))...)
			// Right-only rows carry their key values in the left key columns.
			for i, pos := range lkeys {
				row[pos] = rrow[rkeys[i]]
			}
		}
		for _, j := range rightCols {
			if rrow != nil {
				row = append(row, rrow[j])
			} else {
				row = append(row, "")
			}
		}
		out.Rows = append(out.Rows, row)
	}

	if how == JoinRight {
		lindex := make(map[string][]int)
		for i, row := range left.Rows {
			k := joinKey(row, lkeys)
			lindex[k] = append(lindex[k], i)
		}
		for _, rrow := range right.Rows {
			matches := lindex[joinKey(rrow, rkeys)]
			if len(matches) == 0 {
				emit(nil, rrow)
				continue
			}
			for _, i := range matches {
				emit(left.Rows[i], rrow)
			}
		}
		return out, nil
	}

	matched := make([]bool, len(right.Rows))
	for _, lrow := range left.Rows {
		matches := index[joinKey(lrow, lkeys)]
		if len(matches) == 0 {
			if how == JoinLeft || how == JoinOuter {
				emit(lrow, nil)
			}
			continue
		}
		for _, j := range matches {
			matched[j] = true
			emit(lrow, right.Rows[j])
		}
	}
	if how == JoinOuter {
		for j, rrow := range right.Rows {
			if !matched[j] {
				emit(nil, rrow)
			}
		}
	}
	return out, nil
}

func joinKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, j := range idx {
		parts[i] = row[j]
	}
	return strings.Join(parts, "\x00")
}
