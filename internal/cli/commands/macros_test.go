package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staysMacro = `
def stay(los, cutoff=7):
    """Classify a length of stay.

    Missing stays stay missing.
    """
    if los == None:
        return None
    return "long" if los > cutoff else "short"

def _unused():
    pass

LONG = 7
`

func writeProjectMacro(t *testing.T, p *project, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(p.cfg.MacrosDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(p.cfg.MacrosDir, name), []byte(content), 0o600))
}

func TestDeriveCommand_WithMacros(t *testing.T) {
	p := newProject(t, "json")
	writeProjectMacro(t, p, "stays.star", staysMacro)

	derived := p.saved(t, NewDeriveCommand(), p.path("admissions.csv"),
		"--name", "stay_class", "--expr", "stays.stay(los_days)")
	content := readCSV(t, derived.Path)
	assert.Contains(t, content, "1,2023-01-05,64,3,0,short\n")
	assert.Contains(t, content, "2,2023-02-11,71,9,1,long\n")
	assert.Contains(t, content, "5,2023-08-15,52,,0,\n")

	_, err := p.run(t, NewDeriveCommand(), p.path("admissions.csv"),
		"--name", "x", "--expr", "stays.missing(los_days)")
	require.Error(t, err)
}

func TestDeriveCommand_BrokenMacro(t *testing.T) {
	p := newProject(t, "json")
	writeProjectMacro(t, p, "broken.star", "def broken(:\n")

	_, err := p.run(t, NewDeriveCommand(), p.path("admissions.csv"), "--name", "x", "--expr", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macros/broken.star")
}

func TestMacrosCommand(t *testing.T) {
	p := newProject(t, "json")

	out, err := p.run(t, NewMacrosCommand())
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	writeProjectMacro(t, p, "stays.star", staysMacro)
	out, err = p.run(t, NewMacrosCommand())
	require.NoError(t, err)
	var namespaces []struct {
		Name      string `json:"name"`
		Functions []struct {
			Name string   `json:"name"`
			Args []string `json:"args"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &namespaces))
	require.Len(t, namespaces, 1)
	assert.Equal(t, "stays", namespaces[0].Name)
	require.Len(t, namespaces[0].Functions, 1)
	assert.Equal(t, []string{"los", "cutoff=7"}, namespaces[0].Functions[0].Args)

	p.cfg.OutputFormat = "markdown"
	out, err = p.run(t, NewMacrosCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "| stays.stay(los, cutoff=7) | Classify a length of stay. |")
	assert.Contains(t, out, "stays.LONG")
}
