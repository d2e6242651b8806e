package runctx

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/config"
)

// Manager lazily creates the RunContext on first use and hands out the same
// instance afterwards.
type Manager struct {
	rootDir       string
	snapshotFiles []string
	resume        bool
	now           func() time.Time
	logger        *slog.Logger

	mu sync.Mutex
	rc *RunContext
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for the run timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSnapshotFiles sets the configuration files copied into <run>/config.
func WithSnapshotFiles(files []string) Option {
	return func(m *Manager) {
		m.snapshotFiles = files
	}
}

// WithResume makes a Manager that finds its run directory already on disk
// continue from the highest step saved there instead of starting at 0.
// Separate processes started within the same second share a directory.
func WithResume() Option {
	return func(m *Manager) {
		m.resume = true
	}
}

// WithLogger sets the logger (nil uses a discard logger).
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager rooted at rootDir ("" uses config.DefaultRootDir).
// No filesystem work happens until Get is called.
func NewManager(rootDir string, opts ...Option) *Manager {
	if rootDir == "" {
		rootDir = config.DefaultRootDir
	}
	m := &Manager{
		rootDir:       rootDir,
		snapshotFiles: config.DefaultSnapshotFiles,
		now:           time.Now,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerFromConfig creates a Manager from the shared configuration.
func NewManagerFromConfig(cfg *config.Config, opts ...Option) *Manager {
	base := []Option{WithSnapshotFiles(cfg.SnapshotFiles)}
	return NewManager(cfg.Output.RootDir, append(base, opts...)...)
}

// Get returns the current RunContext, creating the run directory on the
// first call. Later calls return the same object without touching disk.
func (m *Manager) Get() (*RunContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rc != nil {
		return m.rc, nil
	}

	root, err := filepath.Abs(m.rootDir)
	if err != nil {
		return nil, err
	}

	started := m.now()
	timestamp := started.Format(TimestampLayout)
	runDir := filepath.Join(root, timestamp)

	var step int
	if m.resume {
		if step, err = lastStep(runDir); err != nil {
			return nil, err
		}
	}

	for _, name := range ComponentDirs {
		if err := os.MkdirAll(filepath.Join(runDir, name), dirPerm); err != nil {
			return nil, err
		}
	}

	if err := m.snapshotConfig(filepath.Join(runDir, ConfigDir)); err != nil {
		return nil, err
	}

	m.rc = &RunContext{
		RootDir:   root,
		Dir:       runDir,
		Timestamp: timestamp,
		StartedAt: started,
		step:      step,
	}
	m.logger.Info("run context created", slog.String("dir", runDir), slog.Int("step", step))

	return m.rc, nil
}

// snapshotConfig copies the configured files into dst unless dst already
// exists. Files that do not exist are skipped.
func (m *Manager) snapshotConfig(dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(dst, dirPerm); err != nil {
		return err
	}

	for _, src := range m.snapshotFiles {
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			m.logger.Debug("skipping config snapshot", slog.String("file", src))
			continue
		}
		if err := copyFile(src, filepath.Join(dst, filepath.Base(src))); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // snapshot paths come from configuration
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // dst is inside the run directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// stepPattern matches the leading step of an artifact file name.
var stepPattern = regexp.MustCompile(`^(\d{3,})_\d{8}_\d{8}_`)

// lastStep returns the highest artifact step found anywhere under runDir, or
// 0 when the directory does not exist.
func lastStep(runDir string) (int, error) {
	var last int
	err := filepath.WalkDir(runDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if m := stepPattern.FindStringSubmatch(d.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > last {
				last = n
			}
		}
		return nil
	})
	return last, err
}
