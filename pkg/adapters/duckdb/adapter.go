// Package duckdb registers the "duckdb" adapter for local analytical
// extraction from a DuckDB file or an in-memory database. Import it for
// side effects:
//
//	import _ "github.com/leapstack-labs/leaptrack/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leaptrack/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

var dialect = &adapter.Dialect{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   adapter.QuestionPlaceholder,
	SearchPath: func(schema string) string {
		return "SET search_path = " + adapter.QuoteLiteral(schema)
	},
}

// Adapter runs extraction queries against DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New returns an unconnected adapter.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect opens cfg.Path, falling back to cfg.Database. An empty path or
// ":memory:" opens an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to duckdb", slog.String("path", path))
	return a.Open(ctx, "duckdb", path, cfg)
}

// GetTableMetadata describes table; unqualified names resolve to "main".
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.DescribeTable(ctx, table, dialect)
}

// LoadCSV replaces table with the file's contents, letting read_csv_auto
// infer column types.
func (a *Adapter) LoadCSV(ctx context.Context, table string, path string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true)",
		adapter.TableRef(table), adapter.QuoteLiteral(abs))
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to load %s into %s: %w", path, table, err)
	}
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
