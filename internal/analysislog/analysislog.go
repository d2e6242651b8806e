// Package analysislog keeps an append-only markdown journal of hypotheses
// and findings for the current run.
package analysislog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

// FileName is the journal file inside the log subdirectory.
const FileName = "analysis_log.md"

// EntryTimeLayout formats entry headings.
const EntryTimeLayout = "2006-01-02 15:04:05"

const filePerm = 0o600

// Entry is a single journal entry.
type Entry struct {
	Time       time.Time
	Hypothesis string
	Finding    string
	Artifacts  []string
}

// Markdown renders the entry. The artifact section is omitted when there are
// no artifacts.
func (e Entry) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n### Analysis Entry: %s\n", e.Time.Format(EntryTimeLayout))
	fmt.Fprintf(&b, "**Hypothesis:** %s\n\n", e.Hypothesis)
	fmt.Fprintf(&b, "**Finding:** %s\n\n", e.Finding)
	if len(e.Artifacts) > 0 {
		b.WriteString("**Artifacts:**\n")
		for _, a := range e.Artifacts {
			fmt.Fprintf(&b, "- `%s`\n", a)
		}
	}
	b.WriteString("---\n")
	return b.String()
}

// Log appends entries to <run dir>/<subdir>/analysis_log.md.
type Log struct {
	runs   *runctx.Manager
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Log writing into the runs managed by runs.
func New(runs *runctx.Manager, opts ...Option) *Log {
	l := &Log{
		runs:   runs,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes one entry and returns the absolute path of the journal.
// An empty subdir means "vizops". Existing content is never rewritten.
func (l *Log) Append(ctx context.Context, hypothesis, finding string, artifacts []string, subdir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rc, err := l.runs.Get()
	if err != nil {
		return "", err
	}
	if subdir == "" {
		subdir = runctx.VizOpsDir
	}
	dir, err := rc.Subdir(subdir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName)
	entry := Entry{
		Time:       l.now(),
		Hypothesis: hypothesis,
		Finding:    finding,
		Artifacts:  artifacts,
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm) //nolint:gosec // path is inside the run directory
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(entry.Markdown()); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	l.logger.Info("logged analysis entry", slog.String("path", path), slog.Int("artifacts", len(artifacts)))
	return path, nil
}
