package dataops

import (
	"math"
	"sort"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// NumericStats summarizes the non-missing values of a numeric column.
type NumericStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"25%"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// Profile is a summary of a dataset.
type Profile struct {
	Rows         int                     `json:"rows"`
	Columns      []string                `json:"columns"`
	NullCounts   map[string]int          `json:"null_counts"`
	Cardinality  map[string]int          `json:"cardinality"`
	NumericStats map[string]NumericStats `json:"numeric_stats"`
}

// Profile reads the dataset at path and summarizes it. Cardinality counts
// distinct non-missing values. Std is the sample standard deviation and is
// 0 for columns with fewer than two values.
func (s *Service) Profile(path string) (*Profile, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Rows:         t.Len(),
		Columns:      t.Columns,
		NullCounts:   make(map[string]int, len(t.Columns)),
		Cardinality:  make(map[string]int, len(t.Columns)),
		NumericStats: make(map[string]NumericStats),
	}

	for i, col := range t.Columns {
		distinct := make(map[string]struct{})
		nulls := 0
		for _, row := range t.Rows {
			if starctx.IsNull(row[i]) {
				nulls++
				continue
			}
			distinct[row[i]] = struct{}{}
		}
		p.NullCounts[col] = nulls
		p.Cardinality[col] = len(distinct)

		if k := classify(t, i); k == kindInt || k == kindFloat {
			p.NumericStats[col] = describe(numericValues(t, i))
		}
	}
	return p, nil
}

func numericValues(t artifact.Table, i int) []float64 {
	var values []float64
	for _, row := range t.Rows {
		if v, ok := parseNumber(row[i]); ok {
			values = append(values, v)
		}
	}
	return values
}

func describe(values []float64) NumericStats {
	st := NumericStats{Count: len(values)}
	if len(values) == 0 {
		return st
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	st.Mean = sum / float64(len(sorted))
	if len(sorted) > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - st.Mean
			ss += d * d
		}
		st.Std = math.Sqrt(ss / float64(len(sorted)-1))
	}
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	st.P25 = quantile(sorted, 0.25)
	st.P50 = quantile(sorted, 0.50)
	st.P75 = quantile(sorted, 0.75)
	return st
}

// quantile uses linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
