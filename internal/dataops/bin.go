package dataops

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// BinNumeric cuts column col into equal-width bins and writes the bin label
// to "<col>_bin", saving the result as "binned_feature". Bins are
// right-closed; the lowest edge is moved down by 0.1% of the range so the
// minimum falls in the first bin. Without labels, bins are named "(a, b]".
func (s *Service) BinNumeric(ctx context.Context, path, col string, bins int, labels []string) (string, error) {
	if bins <= 0 {
		return "", fmt.Errorf("bins must be positive, got %d", bins)
	}
	if len(labels) > 0 && len(labels) != bins {
		return "", fmt.Errorf("got %d labels for %d bins", len(labels), bins)
	}

	t, err := ReadTable(path)
	if err != nil {
		return "", err
	}
	idx, err := columnIndex(t, col)
	if err != nil {
		return "", err
	}
	if classify(t, idx) == kindText {
		return "", fmt.Errorf("column %q is not numeric", col)
	}

	values := numericValues(t, idx)
	if len(values) == 0 {
		return "", fmt.Errorf("column %q has no values to bin", col)
	}
	edges := binEdges(values, bins)
	if len(labels) == 0 {
		labels = intervalLabels(edges)
	}

	cells := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		v, ok := parseNumber(row[idx])
		if !ok {
			continue
		}
		if b := binIndex(edges, v); b >= 0 {
			cells[i] = labels[b]
		}
	}

	out := setColumn(t, col+"_bin", cells)
	return s.save(ctx, out, PrefixBinnedFeature)
}

func binEdges(values []float64, bins int) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		adj := 0.001 * math.Abs(lo)
		if lo == 0 {
			adj = 0.001
		}
		return linspace(lo-adj, hi+adj, bins+1)
	}

	edges := linspace(lo, hi, bins+1)
	edges[0] -= (hi - lo) * 0.001
	return edges
}

func linspace(lo, hi float64, n int) []float64 {
	edges := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range edges {
		edges[i] = lo + step*float64(i)
	}
	edges[n-1] = hi
	return edges
}

// binIndex returns the right-closed bin containing v, or -1.
func binIndex(edges []float64, v float64) int {
	i := sort.SearchFloat64s(edges, v)
	if i == 0 || i == len(edges) {
		return -1
	}
	return i - 1
}

func intervalLabels(edges []float64) []string {
	labels := make([]string, len(edges)-1)
	for i := range labels {
		labels[i] = fmt.Sprintf("(%s, %s]", formatEdge(edges[i]), formatEdge(edges[i+1]))
	}
	return labels
}

func formatEdge(v float64) string {
	s := strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
