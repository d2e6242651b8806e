// Package macro loads project Starlark files and exposes them to
// derived-feature expressions. Each macros/<name>.star file becomes a
// module named <name>; its public top-level values are the module's
// attributes, so risk.star defining score() is called as risk.score(...).
package macro

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
	"go.starlark.net/starlark"
)

// Loader executes the macro files of one directory.
type Loader struct {
	dir string
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadedModule is an executed macro file.
type LoadedModule struct {
	Namespace string // file name without .star
	Path      string

	// Exports holds the frozen top-level values whose names do not start
	// with an underscore.
	Exports starlark.StringDict
}

// Load executes every .star file in the directory in name order. An unset
// or missing directory has no macros.
func (l *Loader) Load() ([]*LoadedModule, error) {
	if l.dir == "" {
		return nil, nil
	}
	info, err := os.Stat(l.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to access macros directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("macros path is not a directory: %s", l.dir)
	}

	paths, err := filepath.Glob(filepath.Join(l.dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan macros directory: %w", err)
	}

	modules := make([]*LoadedModule, 0, len(paths))
	for _, path := range paths {
		m, err := loadModule(path)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func loadModule(path string) (*LoadedModule, error) {
	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if !starctx.IsIdentifier(namespace) {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("%q is not a valid namespace; use letters, digits and underscores", namespace)}
	}

	src, err := os.ReadFile(path) //nolint:gosec // globbed from the macros directory
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	thread := &starlark.Thread{Name: "macro " + namespace, Print: func(*starlark.Thread, string) {}}
	globals, err := starlark.ExecFileOptions(starctx.FileOptions, thread, path, src, starctx.Predeclared())
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, &LoadError{File: path, Message: evalErr.Backtrace()}
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	exports := make(starlark.StringDict, len(globals))
	for name, v := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = v
		}
	}
	// Rows are evaluated concurrently.
	exports.Freeze()

	return &LoadedModule{Namespace: namespace, Path: path, Exports: exports}, nil
}

// LoadError reports a macro file that could not be loaded.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("macros/%s: %s", filepath.Base(e.File), e.Message)
}
