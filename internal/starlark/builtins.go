package starlark

import (
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// FileOptions is the dialect used for expressions and macro files.
var FileOptions = &syntax.FileOptions{Set: true, TopLevelControl: true}

// RowGlobal is the dict holding every column of the current row. It is the
// only way to reach columns whose names are not identifiers.
const RowGlobal = "row"

// Predeclared returns the globals shared by every row evaluation.
func Predeclared() starlark.StringDict {
	globals := starlark.StringDict{
		"math": math.Module,
	}
	globals.Freeze()
	return globals
}

// RowLocals exposes one table row to an expression. Columns named like a
// predeclared global are only reachable through row[...].
func RowLocals(columns []string, cells []string) starlark.StringDict {
	return rowLocals(columns, cells, Predeclared())
}

func rowLocals(columns []string, cells []string, predeclared starlark.StringDict) starlark.StringDict {
	locals := make(starlark.StringDict, len(columns)+1)
	dict := starlark.NewDict(len(columns))
	for i, col := range columns {
		var v starlark.Value = starlark.None
		if i < len(cells) {
			v = CellToStarlark(cells[i])
		}
		_ = dict.SetKey(starlark.String(col), v)
		if _, reserved := predeclared[col]; reserved || col == RowGlobal || !IsIdentifier(col) {
			continue
		}
		locals[col] = v
	}
	locals[RowGlobal] = dict
	return locals
}

// IsIdentifier reports whether s can be used as a Starlark name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
