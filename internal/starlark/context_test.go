package starlark

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestNewEvaluator_SyntaxError(t *testing.T) {
	_, err := NewEvaluator("amount +", WithFilename("derive"))
	require.Error(t, err)

	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "derive", evalErr.File)
	assert.Equal(t, 0, evalErr.Row)
}

func TestEvaluator_EvalRows(t *testing.T) {
	columns := []string{"total_amount", "los_days", "claim type"}
	rows := [][]string{
		{"250", "5", "inpatient"},
		{"100.5", "0", "outpatient"},
		{"", "2", "inpatient"},
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			name: "true division",
			expr: "total_amount / 100",
			want: []string{"2.5", "1.005", "<error>"},
		},
		{
			name: "conditional with None",
			expr: "0 if total_amount == None else total_amount * 2",
			want: []string{"500", "201.0", "0"},
		},
		{
			name: "row dict for non-identifier columns",
			expr: `row["claim type"] == "inpatient"`,
			want: []string{"True", "False", "True"},
		},
		{
			name: "math module",
			expr: "math.sqrt(los_days * los_days)",
			want: []string{"5.0", "0.0", "2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NewEvaluator(tt.expr)
			require.NoError(t, err)

			if tt.want[len(tt.want)-1] == "<error>" {
				_, err := ev.EvalRows(context.Background(), columns, rows)
				var evalErr *EvalError
				require.ErrorAs(t, err, &evalErr)
				assert.Equal(t, 3, evalErr.Row)
				return
			}

			values, err := ev.EvalRows(context.Background(), columns, rows)
			require.NoError(t, err)
			require.Len(t, values, len(rows))
			for i, v := range values {
				assert.Equal(t, tt.want[i], v.String(), "row %d", i+1)
			}
		})
	}
}

func TestEvaluator_Eval(t *testing.T) {
	ev, err := NewEvaluator("a + b")
	require.NoError(t, err)

	v, err := ev.Eval(starlark.StringDict{"a": starlark.MakeInt(1), "b": starlark.MakeInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "3", v.String())

	_, err = ev.Eval(nil)
	assert.ErrorContains(t, err, "undefined: a")
	assert.Equal(t, "a + b", ev.Expr())
}

func TestEvaluator_PreservesRowOrder(t *testing.T) {
	rows := make([][]string, 200)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(i)}
	}

	ev, err := NewEvaluator("n * 10", WithConcurrency(4))
	require.NoError(t, err)

	values, err := ev.EvalRows(context.Background(), []string{"n"}, rows)
	require.NoError(t, err)
	for i, v := range values {
		assert.Equal(t, fmt.Sprint(i*10), v.String())
	}
}

func TestEvaluator_EvalRowsCancelled(t *testing.T) {
	ev, err := NewEvaluator("n + 1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ev.EvalRows(ctx, []string{"n"}, [][]string{{"1"}, {"2"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRowLocals(t *testing.T) {
	locals := RowLocals([]string{"a", "math", "bad-name", "row"}, []string{"1", "2", "3"})

	assert.Contains(t, locals, "a")
	assert.NotContains(t, locals, "math", "predeclared names are not shadowed")
	assert.NotContains(t, locals, "bad-name")

	dict, ok := locals[RowGlobal].(*starlark.Dict)
	require.True(t, ok)
	assert.Equal(t, 4, dict.Len())

	missing, found, err := dict.Get(starlark.String("row"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, starlark.None, missing, "short rows pad with None")
}
