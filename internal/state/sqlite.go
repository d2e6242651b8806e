package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	memoryPath = ":memory:"

	// Timestamps are stored as UTC text so they sort lexically.
	timeLayout = time.RFC3339Nano
)

// SQLiteStore is the artifact index backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// runIDs maps run directories to their row IDs for this process.
	mu     sync.Mutex
	runIDs map[string]string
}

// NewSQLiteStore creates a store. Call Open before use.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger, runIDs: map[string]string{}}
}

// Open connects to the index at path, creating its directory. ":memory:"
// opens a private in-memory index.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return fmt.Errorf("failed to open artifact index: %w", err)
	}
	// One connection: in-memory databases are per connection, and the index
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to open artifact index %s: %w", path, err)
	}

	s.db, s.path = db, path
	s.logger.Debug("opened artifact index", slog.String("path", path))
	return nil
}

func sqliteDSN(path string) string {
	if path == memoryPath {
		return memoryPath + "?_pragma=foreign_keys(1)"
	}
	return "file:" + path +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database. Closing an unopened store is a no-op.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the path passed to Open.
func (s *SQLiteStore) Path() string { return s.path }

func newID() string { return uuid.NewString() }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }
