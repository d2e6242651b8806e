package starlark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestThreadReuse(t *testing.T) {
	thread := getThread("los_band")
	assert.Equal(t, "los_band", thread.Name)
	putThread(thread)
	assert.Empty(t, thread.Name, "returned threads keep no row name")
}

func TestParallelExecutor_Execute(t *testing.T) {
	exec := NewParallelExecutor(3, Predeclared())

	tasks := []EvalTask{
		{Name: "t1", Expr: "x + 1", Locals: starlark.StringDict{"x": starlark.MakeInt(1)}},
		{Name: "t2", Expr: "math.sqrt(16)"},
		{Name: "t3", Expr: "undefined_var"},
	}

	results, err := exec.Execute(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "t1", results[0].Name)
	assert.Equal(t, "2", results[0].Value.String())
	require.NoError(t, results[1].Error)
	assert.Equal(t, "4.0", results[1].Value.String())
	assert.Error(t, results[2].Error)
}

func TestParallelExecutor_DefaultLimit(t *testing.T) {
	exec := NewParallelExecutor(0, nil)
	assert.Positive(t, exec.limit)

	results, err := exec.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
