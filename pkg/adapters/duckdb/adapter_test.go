package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leaptrack/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, cfg adapter.Config) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), cfg))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	t.Run("in-memory by default", func(t *testing.T) {
		adp := connect(t, adapter.Config{})
		assert.True(t, adp.IsConnected())
		assert.NoError(t, adp.Ping(context.Background()))
	})

	t.Run("file path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "extract.duckdb")
		connect(t, adapter.Config{Path: path})
		assert.FileExists(t, path)
	})

	t.Run("database falls back as path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "warehouse.duckdb")
		connect(t, adapter.Config{Database: path})
		assert.FileExists(t, path)
	})
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := adp.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.ErrorIs(t, adp.LoadCSV(ctx, "t", "missing.csv"), adapter.ErrNotConnected)
}

func TestAdapter_LoadCSVAndMetadata(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{Path: ":memory:"})

	dir := filepath.Join(t.TempDir(), "o'brien")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	csvPath := filepath.Join(dir, "admissions.csv")
	require.NoError(t, os.WriteFile(csvPath,
		[]byte("patient_id,age,los_days\n1,64,3\n2,71,9\n3,38,1\n"), 0o600))

	require.NoError(t, adp.LoadCSV(ctx, "admissions", csvPath))
	require.NoError(t, adp.LoadCSV(ctx, "admissions", csvPath), "loading again replaces the table")

	rows, err := adp.Query(ctx, "SELECT SUM(los_days) FROM admissions")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var total int
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&total))
	assert.Equal(t, 13, total)

	meta, err := adp.GetTableMetadata(ctx, "admissions")
	require.NoError(t, err)
	assert.Equal(t, "main", meta.Schema)
	require.Len(t, meta.Columns, 3)
	assert.Equal(t, "patient_id", meta.Columns[0].Name)
	assert.Equal(t, int64(3), meta.RowCount)

	_, err = adp.GetTableMetadata(ctx, "nonexistent_table")
	assert.ErrorContains(t, err, "not found")
}

func TestAdapter_SearchPath(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, adapter.Config{})

	require.NoError(t, adp.Exec(ctx, "CREATE SCHEMA dw"))
	require.NoError(t, adp.Exec(ctx, "CREATE TABLE dw.fct_claim AS SELECT 1 AS claim_id"))
	require.NoError(t, adp.Exec(ctx, adp.Dialect().SetSearchPath("dw")))

	rows, err := adp.Query(ctx, "SELECT claim_id FROM fct_claim")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	assert.True(t, rows.Next())
}

func TestDialect(t *testing.T) {
	d := New(nil).Dialect()
	assert.Equal(t, "duckdb", d.Name)
	assert.Equal(t, "?", d.FormatPlaceholder(1))
	assert.Equal(t, "SET search_path = 'dw'", d.SetSearchPath("dw"))
}
