package artifact

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

// Saved describes an artifact after it has been renamed into place.
type Saved struct {
	Record
	Kind   Kind
	Subdir string
	Path   string
	Size   int64
}

// Recorder is notified after each successful save. Recorder failures are
// logged and never fail the save.
type Recorder interface {
	RecordArtifact(ctx context.Context, rc *runctx.RunContext, saved Saved) error
}

// Service saves artifacts into the current run.
type Service struct {
	runs     *runctx.Manager
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for save confirmations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder registers an index that is told about every save.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// NewService creates a Service bound to the run context manager.
func NewService(runs *runctx.Manager, opts ...Option) *Service {
	s := &Service{
		runs:   runs,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Runs returns the run context manager the service writes into.
func (s *Service) Runs() *runctx.Manager {
	return s.runs
}

// SaveTable persists tabular data as CSV (default subdir "dataops").
func (s *Service) SaveTable(ctx context.Context, t Table, prefix, subdir string) (string, error) {
	return s.Save(ctx, t, prefix, subdir)
}

// SaveModel persists a model blob (default subdir "mlops").
func (s *Service) SaveModel(ctx context.Context, m Model, prefix, subdir string) (string, error) {
	return s.Save(ctx, m, prefix, subdir)
}

// SaveMetrics persists a metrics mapping as indented JSON (default subdir "mlops").
func (s *Service) SaveMetrics(ctx context.Context, m Metrics, prefix, subdir string) (string, error) {
	return s.Save(ctx, m, prefix, subdir)
}

// SaveChart persists a chart as an HTML document (default subdir "vizops").
func (s *Service) SaveChart(ctx context.Context, c Chart, prefix, subdir string) (string, error) {
	return s.Save(ctx, c, prefix, subdir)
}

// Save persists a and returns the absolute path of the final file.
// An empty subdir selects the kind's default subdirectory.
func (s *Service) Save(ctx context.Context, a Artifact, prefix, subdir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validatePrefix(prefix); err != nil {
		return "", err
	}
	if a == nil || a.Kind() == KindUnknown {
		return "", &SerializationError{Kind: KindUnknown, Prefix: prefix, Err: ErrUnsupportedKind}
	}
	kind := a.Kind()

	rc, err := s.runs.Get()
	if err != nil {
		return "", err
	}

	if subdir == "" {
		subdir = kind.DefaultSubdir()
	}
	dir, err := rc.Subdir(subdir)
	if err != nil {
		return "", err
	}

	ext := a.Extension()
	tempPath := filepath.Join(dir, TempFileName(prefix, ext))
	size, err := writeTemp(ctx, tempPath, a, prefix)
	if err != nil {
		return "", err
	}

	hash, err := HashFile(tempPath)
	if err != nil {
		return "", err
	}

	rec := Record{
		Step:      rc.NextStep(),
		Timestamp: rc.Timestamp,
		Hash:      hash,
		Prefix:    prefix,
		Extension: ext,
	}
	finalPath := filepath.Join(dir, rec.FileName())

	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", err
	}

	s.logger.Info("saved "+kind.String(),
		slog.String("path", finalPath),
		slog.Int("step", rec.Step),
		slog.String("hash", rec.Hash),
	)

	if s.recorder != nil {
		saved := Saved{Record: rec, Kind: kind, Subdir: subdir, Path: finalPath, Size: size}
		if err := s.recorder.RecordArtifact(ctx, rc, saved); err != nil {
			s.logger.Warn("failed to index artifact", slog.String("path", finalPath), slog.String("error", err.Error()))
		}
	}

	return finalPath, nil
}

// writeTemp serializes a into path and returns the number of bytes written.
// Encoder failures are reported as *SerializationError; the partial temp
// file is left in place.
func writeTemp(ctx context.Context, path string, a Artifact, prefix string) (int64, error) {
	f, err := os.Create(path) //nolint:gosec // path is inside the run directory
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: bufio.NewWriter(f)}
	if err := encode(ctx, cw, a); err != nil {
		_ = f.Close()
		return 0, &SerializationError{Kind: a.Kind(), Prefix: prefix, Err: err}
	}
	if err := cw.w.Flush(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
