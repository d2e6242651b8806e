package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// BaseSQLAdapter implements the database/sql parts of Adapter. Drivers
// embed it and add Connect, GetTableMetadata, LoadCSV and Dialect.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// NewBase returns a BaseSQLAdapter logging to logger (nil discards).
func NewBase(logger *slog.Logger) BaseSQLAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseSQLAdapter{Logger: logger}
}

// Open connects with driverName and verifies the connection with a ping.
func (b *BaseSQLAdapter) Open(ctx context.Context, driverName, dsn string, cfg Config) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", driverName, err)
	}
	b.DB = db
	b.Cfg = cfg
	return nil
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLAdapter) conn() (*sql.DB, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	return b.DB, nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Close closes the connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.log().Debug("closing warehouse connection")
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Ping checks that the warehouse answers.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("warehouse did not answer: %w", err)
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query runs an extraction query.
func (b *BaseSQLAdapter) Query(ctx context.Context, query string) (*Rows, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	//nolint:rowserrcheck // the caller iterates and checks rows.Err()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// ParseQualifiedName splits "schema.table"; an unqualified name gets the
// dialect's default schema.
func ParseQualifiedName(table string, d *Dialect) (schema, name string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return schema, name
	}
	return d.DefaultSchema, table
}

// TableRef quotes a possibly schema-qualified table reference without
// adding a schema the caller did not give.
func TableRef(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return QualifiedName(schema, name)
	}
	return QuoteIdent(table)
}

// DescribeTable reads column metadata from information_schema and counts
// the table's rows.
func (b *BaseSQLAdapter) DescribeTable(ctx context.Context, table string, d *Dialect) (*Metadata, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	schema, name := ParseQualifiedName(table, d)

	//nolint:gosec // only placeholders are interpolated
	query := fmt.Sprintf(`SELECT column_name, data_type, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := db.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := &Metadata{Schema: schema, Name: name, RowCount: -1}
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}
	if len(meta.Columns) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", schema, name)
	}

	count := "SELECT COUNT(*) FROM " + QualifiedName(schema, name)
	if err := db.QueryRowContext(ctx, count).Scan(&meta.RowCount); err != nil {
		b.log().Debug("row count unavailable", slog.String("table", table), slog.String("error", err.Error()))
		meta.RowCount = -1
	}
	return meta, nil
}

// ReplaceTextTable drops table and recreates it with one TEXT column per
// header name.
func (b *BaseSQLAdapter) ReplaceTextTable(ctx context.Context, table string, header []string) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if len(header) == 0 {
		return fmt.Errorf("no columns for table %s", table)
	}

	defs := make([]string, len(header))
	for i, col := range header {
		defs[i] = QuoteIdent(strings.TrimSpace(col)) + " TEXT"
	}
	ref := TableRef(table)
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ref); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	//nolint:gosec // identifiers are quoted
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ref, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}
