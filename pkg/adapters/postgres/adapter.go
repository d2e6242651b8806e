// Package postgres registers the "postgres" warehouse adapter. Import it
// for side effects:
//
//	import _ "github.com/leapstack-labs/leaptrack/pkg/adapters/postgres"
package postgres

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leaptrack/pkg/adapter"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

var dialect = &adapter.Dialect{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   adapter.DollarPlaceholder,
	SearchPath: func(schema string) string {
		return "SET search_path TO " + adapter.QuoteIdent(schema)
	},
}

// Adapter talks to a PostgreSQL warehouse through pgx's database/sql driver.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New returns an unconnected adapter.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *adapter.Dialect {
	return dialect
}

// Connect opens a pgx connection pool and pings it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
		slog.String("schema", cfg.Schema))
	return a.Open(ctx, "pgx", connString(cfg), cfg)
}

// connString builds a postgres:// URL. Options become query parameters;
// sslmode defaults to disable and the warehouse schema becomes search_path.
func connString(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + cfg.Database,
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}

	q := url.Values{}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	if cfg.Schema != "" {
		q.Set("search_path", cfg.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// GetTableMetadata describes table. Unqualified names resolve against the
// configured warehouse schema, then "public".
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	d := dialect
	if a.Cfg.Schema != "" {
		scoped := *dialect
		scoped.DefaultSchema = a.Cfg.Schema
		d = &scoped
	}
	return a.DescribeTable(ctx, table, d)
}

// LoadCSV replaces table with TEXT columns named after the CSV header and
// streams the file through COPY FROM STDIN.
func (a *Adapter) LoadCSV(ctx context.Context, table string, path string) error {
	if !a.IsConnected() {
		return adapter.ErrNotConnected
	}

	f, err := os.Open(path) //nolint:gosec // dataset path supplied by the user
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := a.ReplaceTextTable(ctx, table, header); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind CSV file: %w", err)
	}

	n, err := a.copyFrom(ctx, table, f)
	if err != nil {
		return fmt.Errorf("failed to copy %s into %s: %w", path, table, err)
	}
	a.Logger.Debug("copied rows", slog.String("table", table), slog.Int64("rows", n))
	return nil
}

func (a *Adapter) copyFrom(ctx context.Context, table string, f *os.File) (int64, error) {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	var rows int64
	err = conn.Raw(func(driverConn any) error {
		pg, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		stmt := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", adapter.TableRef(table))
		tag, err := pg.Conn().PgConn().CopyFrom(ctx, f, stmt)
		rows = tag.RowsAffected()
		return err
	})
	return rows, err
}

var _ adapter.Adapter = (*Adapter)(nil)
