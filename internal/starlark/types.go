// Package starlark evaluates Starlark expressions against table rows.
// It backs derived-feature columns: each row is exposed to the expression as
// globals (one per column) plus a "row" dict.
package starlark

import (
	"fmt"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// nullTokens are cell values read as missing, matching common CSV writers.
var nullTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
}

// IsNull reports whether a CSV cell represents a missing value.
func IsNull(cell string) bool {
	return nullTokens[strings.TrimSpace(cell)]
}

// CellToStarlark infers a Starlark value from a CSV cell: None for missing
// values, then int, float, bool, and finally string.
func CellToStarlark(cell string) starlark.Value {
	if IsNull(cell) {
		return starlark.None
	}
	s := strings.TrimSpace(cell)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return starlark.MakeInt64(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return starlark.Float(f)
	}
	switch s {
	case "True", "true":
		return starlark.True
	case "False", "false":
		return starlark.False
	}
	return starlark.String(cell)
}

// ToScalar converts an expression result to the Go value written into a
// table cell: nil, string, int64, float64 or bool. Integers too large for
// int64 keep their decimal text. Containers are rejected since a cell holds
// one value.
func ToScalar(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return val.String(), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Indexable, starlark.IterableMapping, *starlark.Set:
		return nil, fmt.Errorf("expression must return a single value, got %s", v.Type())
	default:
		return val.String(), nil
	}
}
