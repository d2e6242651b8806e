// Package testutil holds fixtures and assertions shared by the CLI tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture datasets written by SetupTestProject.
const (
	AdmissionsCSV = `patient_id,admit_date,age,los_days,readmission_30d
1,2023-01-05,64,3,0
2,2023-02-11,71,9,1
3,2023-04-20,45,2,0
4,2023-07-02,80,12,1
5,2023-08-15,52,,0
6,2023-09-30,67,6,1
`
	ClaimsCSV = `patient_id,amount
1,120.5
1,80
2,300
4,45.25
`
	ScoredCSV = `readmission_30d,score
0,0.1
0,0.4
1,0.35
1,0.8
`
)

// SetupTestProject creates a temporary project with a config.yaml and the
// fixture datasets. Artifacts go to <dir>/output and the index to
// <dir>/.leaptrack/state.db.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"config.yaml":    "output:\n  root_dir: output\nstate_path: .leaptrack/state.db\n",
		"admissions.csv": AdmissionsCSV,
		"claims.csv":     ClaimsCSV,
		"scored.csv":     ScoredCSV,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

// RunDirs returns the run directories under <project>/output in creation
// order.
func RunDirs(t *testing.T, projectDir string) []string {
	t.Helper()
	root := filepath.Join(projectDir, "output")
	entries, err := os.ReadDir(root)
	require.NoError(t, err, "no output directory in %s", projectDir)

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}

// TestRenderer is a Renderer writing into buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer in mode. isTTY simulates a terminal,
// which is what selects text for ModeAuto.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	tr := &TestRenderer{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	tr.Renderer = output.NewRendererWithTTY(tr.Out, tr.ErrOut, isTTY, mode)
	return tr
}

// Output returns what was written to stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns what was written to stderr.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

// Reset clears both buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails when s carries terminal escape codes. Markdown and
// JSON output end up in files and pipes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	assert.False(t, ansiPattern.MatchString(s), "unexpected ANSI escape codes in %q", s)
}

// AssertValidMarkdown checks that code fences are balanced and that no
// heading is empty.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()
	assert.Zero(t, strings.Count(md, "```")%2, "unbalanced code fences")
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			assert.NotEmpty(t, strings.TrimLeft(trimmed, "# "), "empty heading at line %d", i+1)
		}
	}
}
