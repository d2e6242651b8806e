package dataops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// ErrUnsupportedAggregation is returned for unknown aggregation functions.
var ErrUnsupportedAggregation = errors.New("unsupported aggregation")

// Aggregation functions.
const (
	AggSum     = "sum"
	AggMean    = "mean"
	AggCount   = "count"
	AggMin     = "min"
	AggMax     = "max"
	AggNUnique = "nunique"
)

// Aggregation applies Func to Column within each group.
type Aggregation struct {
	Column string
	Func   string
}

// ParseAggregations parses "column:func" specs, e.g. "amount:sum".
func ParseAggregations(specs []string) ([]Aggregation, error) {
	aggs := make([]Aggregation, 0, len(specs))
	for _, spec := range specs {
		col, fn, ok := strings.Cut(spec, ":")
		if !ok || col == "" || fn == "" {
			return nil, fmt.Errorf("invalid aggregation %q, want column:function", spec)
		}
		aggs = append(aggs, Aggregation{Column: col, Func: strings.ToLower(fn)})
	}
	return aggs, nil
}

// Aggregate groups the dataset by groupBy, applies aggs, and saves the
// result as "aggregated_data". Groups are sorted by key; rows with a missing
// group key are dropped. Output columns are the group keys followed by one
// column per aggregation, named after the source column (suffixed with the
// function when a column is aggregated more than once).
func (s *Service) Aggregate(ctx context.Context, path string, groupBy []string, aggs []Aggregation) (string, error) {
	if len(groupBy) == 0 {
		return "", fmt.Errorf("aggregate requires at least one group-by column")
	}
	if len(aggs) == 0 {
		return "", fmt.Errorf("aggregate requires at least one aggregation")
	}

	t, err := ReadTable(path)
	if err != nil {
		return "", err
	}
	out, err := aggregateTable(t, groupBy, aggs)
	if err != nil {
		return "", err
	}
	return s.save(ctx, out, PrefixAggregated)
}

func aggregateTable(t artifact.Table, groupBy []string, aggs []Aggregation) (artifact.Table, error) {
	keyIdx, err := columnIndexes(t, groupBy)
	if err != nil {
		return artifact.Table{}, err
	}

	uses := make(map[string]int, len(aggs))
	for _, a := range aggs {
		uses[a.Column]++
	}

	type target struct {
		Aggregation
		idx  int
		kind columnKind
	}
	targets := make([]target, len(aggs))
	columns := append([]string(nil), groupBy...)
	for i, a := range aggs {
		switch a.Func {
		case AggSum, AggMean, AggCount, AggMin, AggMax, AggNUnique:
		default:
			return artifact.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedAggregation, a.Func)
		}
		idx, err := columnIndex(t, a.Column)
		if err != nil {
			return artifact.Table{}, err
		}
		kind := classify(t, idx)
		if kind == kindText && (a.Func == AggSum || a.Func == AggMean) {
			return artifact.Table{}, fmt.Errorf("cannot %s non-numeric column %q", a.Func, a.Column)
		}
		targets[i] = target{Aggregation: a, idx: idx, kind: kind}

		name := a.Column
		if uses[a.Column] > 1 {
			name += "_" + a.Func
		}
		columns = append(columns, name)
	}

	groups := make(map[string][][]string)
	var keys [][]string
	for _, row := range t.Rows {
		key := make([]string, len(keyIdx))
		missing := false
		for i, j := range keyIdx {
			key[i] = row[j]
			if starctx.IsNull(row[j]) {
				missing = true
			}
		}
		if missing {
			continue
		}
		k := strings.Join(key, "\x00")
		if _, ok := groups[k]; !ok {
			keys = append(keys, key)
		}
		groups[k] = append(groups[k], row)
	}
	sort.SliceStable(keys, func(a, b int) bool { return lessKey(keys[a], keys[b]) })

	out := artifact.Table{Columns: columns}
	for _, key := range keys {
		rows := groups[strings.Join(key, "\x00")]
		row := append([]string(nil), key...)
		for _, tg := range targets {
			row = append(row, applyAgg(tg.Func, tg.kind, rows, tg.idx))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		fa, okA := parseNumber(a[i])
		fb, okB := parseNumber(b[i])
		if okA && okB && fa != fb {
			return fa < fb
		}
		return a[i] < b[i]
	}
	return false
}

func applyAgg(fn string, kind columnKind, rows [][]string, idx int) string {
	var cells []string
	for _, row := range rows {
		if !starctx.IsNull(row[idx]) {
			cells = append(cells, row[idx])
		}
	}

	switch fn {
	case AggCount:
		return strconv.Itoa(len(cells))
	case AggNUnique:
		seen := make(map[string]struct{}, len(cells))
		for _, c := range cells {
			seen[c] = struct{}{}
		}
		return strconv.Itoa(len(seen))
	}

	if kind == kindText {
		if len(cells) == 0 {
			return ""
		}
		best := cells[0]
		for _, c := range cells[1:] {
			if (fn == AggMin && c < best) || (fn == AggMax && c > best) {
				best = c
			}
		}
		return best
	}

	values := make([]float64, 0, len(cells))
	for _, c := range cells {
		v, _ := parseNumber(c)
		values = append(values, v)
	}
	format := formatFloat
	if kind == kindInt {
		format = formatInt
	}

	switch fn {
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return format(sum)
	case AggMean:
		if len(values) == 0 {
			return ""
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return formatFloat(sum / float64(len(values)))
	default:
		if len(values) == 0 {
			return ""
		}
		best := values[0]
		for _, v := range values[1:] {
			if fn == AggMin {
				best = math.Min(best, v)
			} else {
				best = math.Max(best, v)
			}
		}
		return format(best)
	}
}
