// Package adapter defines the warehouse contract the data extraction tools
// run queries through.
//
// Drivers live in pkg/adapters/<name> and register a Factory from init();
// import them for side effects to make a database.type available.
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected is returned by every operation attempted before Connect.
var ErrNotConnected = errors.New("database connection not established")

// Config is the connection section of dataops.yaml after env expansion.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
}

// Column describes one warehouse column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a warehouse table. RowCount is -1 when the count
// query failed.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows is a result set. Callers must Close it and check Err after iterating.
type Rows struct {
	*sql.Rows
}

// Dialect captures the SQL differences between warehouses that the
// extraction tools care about.
type Dialect struct {
	Name          string
	DefaultSchema string

	// Placeholder formats the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// SearchPath returns the statement that makes schema the default for
	// unqualified table names.
	SearchPath func(schema string) string
}

// FormatPlaceholder returns the bind parameter for position n.
func (d *Dialect) FormatPlaceholder(n int) string {
	if d == nil || d.Placeholder == nil {
		return "?"
	}
	return d.Placeholder(n)
}

// SetSearchPath returns the search path statement for schema.
func (d *Dialect) SetSearchPath(schema string) string {
	if d != nil && d.SearchPath != nil {
		return d.SearchPath(schema)
	}
	return fmt.Sprintf("SET search_path TO %s", QuoteIdent(schema))
}

// QuoteIdent double-quotes an identifier. Both supported warehouses use
// standard SQL quoting.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QualifiedName quotes and joins a schema and table name.
func QualifiedName(schema, name string) string {
	if schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// QuestionPlaceholder formats every parameter as "?".
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder formats parameters as "$1", "$2", ...
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// Adapter is a connection to one warehouse.
type Adapter interface {
	// Connect opens and verifies the connection.
	Connect(ctx context.Context, cfg Config) error

	// Ping checks that the warehouse still answers.
	Ping(ctx context.Context) error

	// Close releases the connection. Safe to call when not connected.
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Query runs an extraction query.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata describes table, which may be schema-qualified.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV replaces table with the contents of a CSV file whose first
	// row is the header.
	LoadCSV(ctx context.Context, table string, path string) error

	// Dialect returns the SQL dialect of this adapter.
	Dialect() *Dialect
}
