package macro

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func writeMacro(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	tests := []struct {
		name           string
		setupDir       func(t *testing.T) string
		wantNil        bool
		wantErr        bool
		wantNamespaces []string
		checkExports   map[string][]string
	}{
		{
			name:     "empty directory",
			setupDir: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:     "non-existent directory",
			setupDir: func(t *testing.T) string { return filepath.Join(t.TempDir(), "macros") },
			wantNil:  true,
		},
		{
			name: "not a directory",
			setupDir: func(t *testing.T) string {
				return writeMacro(t, t.TempDir(), "macros", "not a dir")
			},
			wantErr: true,
		},
		{
			name: "single macro with multiple functions",
			setupDir: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "risk.star", `
def score(age, los):
    return age / 100.0 + los / 10.0

def band(x):
    return "high" if x > 1 else "low"

_private = "should not be exported"
`)
				return dir
			},
			wantNamespaces: []string{"risk"},
			checkExports:   map[string][]string{"risk": {"score", "band"}},
		},
		{
			name: "multiple files in name order, other extensions ignored",
			setupDir: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "stays.star", "LONG = 7\n")
				writeMacro(t, dir, "cohort.star", "def adult(age):\n    return age >= 18\n")
				writeMacro(t, dir, "notes.txt", "ignored")
				return dir
			},
			wantNamespaces: []string{"cohort", "stays"},
			checkExports:   map[string][]string{"cohort": {"adult"}, "stays": {"LONG"}},
		},
		{
			name: "syntax error",
			setupDir: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "broken.star", "def broken(:\n    return 1\n")
				return dir
			},
			wantErr: true,
		},
		{
			name: "invalid namespace",
			setupDir: func(t *testing.T) string {
				dir := t.TempDir()
				writeMacro(t, dir, "long-stay.star", "X = 1\n")
				return dir
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modules, err := NewLoader(tt.setupDir(t)).Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, modules)
				return
			}

			var namespaces []string
			for _, m := range modules {
				namespaces = append(namespaces, m.Namespace)
				for _, export := range tt.checkExports[m.Namespace] {
					assert.Contains(t, m.Exports, export, "namespace %q", m.Namespace)
				}
				assert.NotContains(t, m.Exports, "_private")
			}
			assert.Equal(t, tt.wantNamespaces, namespaces)
		})
	}
}

func TestLoader_Load_SyntaxError_Details(t *testing.T) {
	dir := t.TempDir()
	macroPath := writeMacro(t, dir, "broken.star", "def broken(:\n    return 1\n")

	_, err := NewLoader(dir).Load()
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, macroPath, loadErr.File)
	assert.Contains(t, err.Error(), "macros/broken.star")
}

func TestLoader_Load_InvalidNamespace(t *testing.T) {
	for _, name := range []string{"2cohort.star", "long-stay.star", "long stay.star", "long.stay.star"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeMacro(t, dir, name, "x = 1\n")

			_, err := NewLoader(dir).Load()
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Contains(t, err.Error(), "not a valid namespace")
		})
	}
}

func TestLoader_ExecuteFunction(t *testing.T) {
	dir := t.TempDir()
	writeMacro(t, dir, "risk.star", `
def bucket(x):
    return math.floor(x / 10)
`)

	modules, err := NewLoader(dir).Load()
	require.NoError(t, err)
	require.Len(t, modules, 1)

	fn := modules[0].Exports["bucket"]
	require.NotNil(t, fn)

	thread := &starlark.Thread{Name: "test"}
	result, err := starlark.Call(thread, fn, starlark.Tuple{starlark.MakeInt(64)}, nil)
	require.NoError(t, err)

	got, ok := result.(starlark.Int)
	require.True(t, ok, "expected Int result, got %T", result)
	n, _ := got.Int64()
	assert.Equal(t, int64(6), n)
}
