package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Flags(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "leaptrack", cmd.Use)

	for _, flag := range []string{"config", "root-dir", "state", "verbose", "output", "threshold"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, "o", cmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{
		"query", "schema", "load", "profile", "join", "aggregate", "derive", "dates", "bin",
		"split", "backtest", "model", "plot", "log", "runs", "artifacts", "index", "doctor", "macros",
		"version", "completion",
	} {
		assert.Contains(t, names, want)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	quiet := newLogger(&buf, false)
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, quiet.Enabled(context.Background(), slog.LevelWarn))

	verbose := newLogger(&buf, true)
	require.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))
	verbose.Debug("run context created", slog.String("dir", "/tmp/run"))
	assert.Contains(t, buf.String(), "dir=/tmp/run")
}
