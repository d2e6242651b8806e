package dataops

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/pkg/adapter"
)

// ExecuteSQL runs query against the warehouse and saves the result set as
// a "query_result" table.
func (s *Service) ExecuteSQL(ctx context.Context, db adapter.Adapter, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is empty")
	}
	if s.schema != "" {
		if err := db.Exec(ctx, db.Dialect().SetSearchPath(s.schema)); err != nil {
			return "", fmt.Errorf("failed to set search path: %w", err)
		}
	}

	rows, err := db.Query(ctx, query)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	t, err := rowsToTable(rows)
	if err != nil {
		return "", fmt.Errorf("failed to read query results: %w", err)
	}

	s.logger.Debug("query executed", slog.Int("rows", t.Len()), slog.Int("columns", len(t.Columns)))
	return s.save(ctx, t, PrefixQueryResult)
}

// TableSchema returns column name to data type for table. A "schema.table"
// reference overrides the configured schema.
func (s *Service) TableSchema(ctx context.Context, db adapter.Adapter, table string) (map[string]string, error) {
	meta, err := s.TableMetadata(ctx, db, table)
	if err != nil {
		return nil, err
	}
	schema := make(map[string]string, len(meta.Columns))
	for _, c := range meta.Columns {
		schema[c.Name] = c.Type
	}
	return schema, nil
}

// TableMetadata is TableSchema with column order, nullability and row count.
func (s *Service) TableMetadata(ctx context.Context, db adapter.Adapter, table string) (*adapter.Metadata, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is empty")
	}
	if !strings.Contains(table, ".") && s.schema != "" {
		table = s.schema + "." + table
	}
	return db.GetTableMetadata(ctx, table)
}

// LoadTable loads a CSV dataset into a warehouse table.
func (s *Service) LoadTable(ctx context.Context, db adapter.Adapter, table, path string) error {
	if _, err := ReadTable(path); err != nil {
		return err
	}
	if err := db.LoadCSV(ctx, table, path); err != nil {
		return err
	}
	s.logger.Info("loaded dataset", slog.String("table", table), slog.String("path", path))
	return nil
}

func rowsToTable(rows *adapter.Rows) (artifact.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return artifact.Table{}, err
	}

	t := artifact.Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return artifact.Table{}, err
		}

		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatCell(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}
