package adapter

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	Adapter
}

func TestRegistry(t *testing.T) {
	var got *slog.Logger
	Register("Stub_Warehouse", func(logger *slog.Logger) Adapter {
		got = logger
		return &stubAdapter{}
	})

	assert.True(t, IsRegistered("stub_warehouse"))
	assert.True(t, IsRegistered("STUB_WAREHOUSE"))
	assert.Contains(t, ListAdapters(), "stub_warehouse")

	adp, err := NewAdapter(Config{Type: "stub_warehouse"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &stubAdapter{}, adp)
	assert.NotNil(t, got, "factories always receive a logger")
}

func TestNewAdapter_Errors(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	assert.EqualError(t, err, "adapter type not specified")

	Register("listed_warehouse", func(*slog.Logger) Adapter { return nil })
	_, err = NewAdapter(Config{Type: "oracle"}, nil)

	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, unknown.Available, "listed_warehouse")
	assert.Contains(t, err.Error(), `unknown adapter type "oracle"`)
	assert.Contains(t, err.Error(), "database.type in dataops.yaml")
}

func TestListAdapters_Sorted(t *testing.T) {
	Register("zz_warehouse", func(*slog.Logger) Adapter { return nil })
	Register("aa_warehouse", func(*slog.Logger) Adapter { return nil })

	assert.IsNonDecreasing(t, ListAdapters())
}
