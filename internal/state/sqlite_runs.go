package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

// EnsureRun returns the index ID for rc, inserting the run on first sight.
func (s *SQLiteStore) EnsureRun(ctx context.Context, rc *runctx.RunContext) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.runIDs[rc.Dir]; ok {
		return id, nil
	}

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE dir = ?`, rc.Dir).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = newID()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO runs (id, dir, timestamp, started_at) VALUES (?, ?, ?, ?)`,
			id, rc.Dir, rc.Timestamp, formatTime(rc.StartedAt),
		)
		if err != nil {
			return "", fmt.Errorf("failed to create run: %w", err)
		}
		s.logger.Debug("indexed run", slog.String("id", id), slog.String("dir", rc.Dir))
	case err != nil:
		return "", fmt.Errorf("failed to get run: %w", err)
	}

	s.runIDs[rc.Dir] = id
	return id, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, runSelect+` WHERE r.id = ? GROUP BY r.id`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, up to limit (0 means all).
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		runSelect+` GROUP BY r.id ORDER BY r.started_at DESC, r.timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runSelect = `SELECT r.id, r.dir, r.timestamp, r.started_at, COUNT(a.id)
FROM runs r LEFT JOIN artifacts a ON a.run_id = r.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var startedAt string
	if err := sc.Scan(&run.ID, &run.Dir, &run.Timestamp, &startedAt, &run.ArtifactCount); err != nil {
		return nil, err
	}
	t, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	return run, nil
}
