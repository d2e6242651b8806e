package dataops

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// ErrColumnNotFound is returned when an operation names a column the
// dataset does not have.
var ErrColumnNotFound = errors.New("column not found")

// ReadTable loads a CSV file with a header row.
func ReadTable(path string) (artifact.Table, error) {
	f, err := os.Open(path) //nolint:gosec // path given on the command line
	if err != nil {
		return artifact.Table{}, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return artifact.Table{}, fmt.Errorf("%s: empty dataset", path)
	}
	if err != nil {
		return artifact.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	t := artifact.Table{Columns: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return artifact.Table{}, fmt.Errorf("%s: %w", path, err)
		}
		t.Rows = append(t.Rows, padRow(rec, len(header)))
	}
	return t, nil
}

func padRow(rec []string, n int) []string {
	switch {
	case len(rec) == n:
		return rec
	case len(rec) > n:
		return rec[:n]
	default:
		out := make([]string, n)
		copy(out, rec)
		return out
	}
}

func columnIndex(t artifact.Table, name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

func columnIndexes(t artifact.Table, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		j, err := columnIndex(t, n)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

// parseNumber returns the numeric value of a cell; missing and
// non-numeric cells report false.
func parseNumber(cell string) (float64, bool) {
	if starctx.IsNull(cell) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isIntCell(cell string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	return err == nil
}

// columnKind classifies the non-null cells of column i.
type columnKind int

const (
	kindEmpty columnKind = iota
	kindInt
	kindFloat
	kindText
)

func classify(t artifact.Table, i int) columnKind {
	kind := kindEmpty
	for _, row := range t.Rows {
		cell := row[i]
		if starctx.IsNull(cell) {
			continue
		}
		if _, ok := parseNumber(cell); !ok {
			return kindText
		}
		if !isIntCell(cell) {
			kind = kindFloat
		} else if kind == kindEmpty {
			kind = kindInt
		}
	}
	return kind
}

// formatFloat renders floats the way dataframe CSV writers do: integral
// values keep a trailing ".0", NaN is written as an empty cell.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 0):
		if f > 0 {
			return "inf"
		}
		return "-inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', 1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

func formatInt(f float64) string {
	return strconv.FormatInt(int64(f), 10)
}

// formatCell renders a Go value from a query or expression as a CSV cell.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(v)
	}
}
