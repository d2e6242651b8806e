package macro

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	src := `
def score(age, los=0, *rest, **opts):
    """Risk score from age and length of stay."""
    return age + los

def band(x, cutoffs=[], label=-1, edges=[1, 2], *, strict=not True):
    return x

def _helper():
    pass

THRESHOLD = 0.5
_CACHE = {}
THRESHOLD += 0.1
`
	ns, err := ParseFile("/project/macros/risk.star", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "risk", ns.Name)
	require.Len(t, ns.Functions, 2)

	score := ns.Functions[0]
	assert.Equal(t, "score", score.Name)
	assert.Equal(t, []string{"age", "los=0", "*rest", "**opts"}, score.Args)
	assert.Equal(t, "Risk score from age and length of stay.", score.Docstring)
	assert.Equal(t, 2, score.Line)
	assert.Equal(t, "score(age, los=0, *rest, **opts)", score.Signature())

	band := ns.Functions[1]
	assert.Equal(t, "band(x, cutoffs=[], label=-1, edges=[...], *, strict=not True)", band.Signature())
	assert.Empty(t, band.Docstring)

	assert.Equal(t, []string{"THRESHOLD"}, ns.Constants)
}

func TestParseFile_SyntaxError(t *testing.T) {
	_, err := ParseFile("broken.star", []byte("def broken(:\n"))
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "parse broken.star")
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	writeMacro(t, dir, "stays.star", "def long(los):\n    return los > 7\n")
	writeMacro(t, dir, "cohort.star", "def adult(age):\n    return age >= 18\n")

	namespaces, err := ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, namespaces, 2)
	assert.Equal(t, "cohort", namespaces[0].Name)
	assert.Equal(t, filepath.Join(dir, "cohort.star"), namespaces[0].FilePath)
	assert.Equal(t, "stays", namespaces[1].Name)

	namespaces, err = ParseDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, namespaces)
}
