package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
)

var _ artifact.Recorder = (*SQLiteStore)(nil)

// RecordArtifact indexes a saved artifact under its run.
func (s *SQLiteStore) RecordArtifact(ctx context.Context, rc *runctx.RunContext, saved artifact.Saved) error {
	runID, err := s.EnsureRun(ctx, rc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, run_id, step, kind, prefix, extension, hash, subdir, path, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), runID, saved.Step, saved.Kind.String(), saved.Prefix, saved.Extension,
		saved.Hash, saved.Subdir, saved.Path, saved.Size, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}

	s.logger.Debug("indexed artifact",
		slog.String("run_id", runID),
		slog.Int("step", saved.Step),
		slog.String("path", saved.Path),
	)
	return nil
}

// ListArtifacts returns indexed artifacts ordered by run then step.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]*Artifact, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "a.run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Kind != "" {
		where = append(where, "a.kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Hash != "" {
		where = append(where, "a.hash = ?")
		args = append(args, filter.Hash)
	}
	if filter.Prefix != "" {
		where = append(where, "a.prefix = ?")
		args = append(args, filter.Prefix)
	}

	query := `SELECT a.id, a.run_id, a.step, a.kind, a.prefix, a.extension, a.hash, a.subdir, a.path, a.size, a.created_at
FROM artifacts a JOIN runs r ON r.id = a.run_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.started_at, a.step"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Artifact
	for rows.Next() {
		a := &Artifact{}
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.Step, &a.Kind, &a.Prefix, &a.Extension,
			&a.Hash, &a.Subdir, &a.Path, &a.Size, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse artifact time: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
