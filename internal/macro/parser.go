package macro

import (
	"os"
	"path/filepath"
	"strings"

	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
	"go.starlark.net/syntax"
)

// Function describes a public function defined in a macro file.
type Function struct {
	Name      string   `json:"name"`
	Args      []string `json:"args"` // with defaults, e.g. "bins=5"
	Docstring string   `json:"docstring,omitempty"`
	Line      int      `json:"line"`
}

// Signature returns the function as it would be called, e.g. "band(x, bins=5)".
func (f *Function) Signature() string {
	return f.Name + "(" + strings.Join(f.Args, ", ") + ")"
}

// Namespace describes one macro file without executing it.
type Namespace struct {
	Name      string      `json:"name"`
	FilePath  string      `json:"file_path"`
	Functions []*Function `json:"functions"`
	Constants []string    `json:"constants,omitempty"`
}

// ParseFile reads the public functions and top-level constants of a macro
// file from its syntax tree.
func ParseFile(filename string, content []byte) (*Namespace, error) {
	f, err := starctx.FileOptions.Parse(filename, content, 0)
	if err != nil {
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	ns := &Namespace{
		Name:      strings.TrimSuffix(filepath.Base(filename), ".star"),
		FilePath:  filename,
		Functions: []*Function{},
	}
	for _, stmt := range f.Stmts {
		switch s := stmt.(type) {
		case *syntax.DefStmt:
			if isPublic(s.Name.Name) {
				ns.Functions = append(ns.Functions, newFunction(s))
			}
		case *syntax.AssignStmt:
			if id, ok := s.LHS.(*syntax.Ident); ok && s.Op == syntax.EQ && isPublic(id.Name) {
				ns.Constants = append(ns.Constants, id.Name)
			}
		}
	}
	return ns, nil
}

// ParseDir parses every .star file in dir in name order. A missing
// directory yields nothing.
func ParseDir(dir string) ([]*Namespace, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, err
	}

	namespaces := make([]*Namespace, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file) //nolint:gosec // globbed from the macros directory
		if err != nil {
			return nil, err
		}
		ns, err := ParseFile(file, content)
		if err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, nil
}

func isPublic(name string) bool { return !strings.HasPrefix(name, "_") }

func newFunction(def *syntax.DefStmt) *Function {
	fn := &Function{
		Name: def.Name.Name,
		Args: make([]string, 0, len(def.Params)),
		Line: int(def.Name.NamePos.Line),
	}
	for _, p := range def.Params {
		if arg := param(p); arg != "" {
			fn.Args = append(fn.Args, arg)
		}
	}
	if len(def.Body) > 0 {
		fn.Docstring = docstring(def.Body[0])
	}
	return fn
}

// param renders one parameter: name, name=default, *args or **kwargs. A
// bare "*" separator renders as "*".
func param(p syntax.Expr) string {
	switch p := p.(type) {
	case *syntax.Ident:
		return p.Name
	case *syntax.BinaryExpr:
		if id, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
			return id.Name + "=" + shortExpr(p.Y)
		}
	case *syntax.UnaryExpr:
		if p.X == nil {
			return "*"
		}
		if id, ok := p.X.(*syntax.Ident); ok {
			return p.Op.String() + id.Name
		}
	}
	return ""
}

// shortExpr abbreviates a default value for display. Literals keep their
// source text; non-empty containers and calls are elided.
func shortExpr(e syntax.Expr) string {
	switch e := e.(type) {
	case *syntax.Literal:
		return e.Raw
	case *syntax.Ident:
		return e.Name
	case *syntax.UnaryExpr:
		if e.Op == syntax.NOT {
			return "not " + shortExpr(e.X)
		}
		return e.Op.String() + shortExpr(e.X)
	case *syntax.ListExpr:
		return elided("[", len(e.List), "]")
	case *syntax.TupleExpr:
		return elided("(", len(e.List), ")")
	case *syntax.DictExpr:
		return elided("{", len(e.List), "}")
	}
	return "..."
}

func elided(left string, n int, right string) string {
	if n == 0 {
		return left + right
	}
	return left + "..." + right
}

// docstring returns the string literal that opens a function body.
func docstring(first syntax.Stmt) string {
	stmt, ok := first.(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

// ParseError reports a macro file that is not valid Starlark.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return "parse " + filepath.Base(e.File) + ": " + e.Message
}
