package macro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	module := &LoadedModule{
		Namespace: "risk",
		Path:      "/project/macros/risk.star",
		Exports:   starlark.StringDict{"score": starlark.String("func")},
	}

	require.NoError(t, registry.Register(module))
	assert.True(t, registry.Has("risk"))
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, module, registry.Get("risk"))
	assert.Nil(t, registry.Get("missing"))
}

func TestRegistry_ReservedNamespace(t *testing.T) {
	for _, reserved := range ReservedNamespaces {
		t.Run(reserved, func(t *testing.T) {
			err := NewRegistry().Register(&LoadedModule{Namespace: reserved, Exports: starlark.StringDict{}})
			var regErr *RegistryError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, reserved, regErr.Namespace)
		})
	}
}

func TestRegistry_DuplicateNamespace(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&LoadedModule{Namespace: "risk", Path: "/a/risk.star"}))

	err := registry.Register(&LoadedModule{Namespace: "risk", Path: "/b/risk.star"})
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, err.Error(), "/a/risk.star")
}

func TestRegistry_RegisterAll_StopsOnError(t *testing.T) {
	registry := NewRegistry()
	err := registry.RegisterAll([]*LoadedModule{
		{Namespace: "cohort"},
		{Namespace: "row"},
		{Namespace: "risk"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_Namespaces(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterAll([]*LoadedModule{
		{Namespace: "zeta"}, {Namespace: "alpha"}, {Namespace: "beta"},
	}))
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, registry.Namespaces())
}

func TestRegistry_Globals(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&LoadedModule{
		Namespace: "risk",
		Exports: starlark.StringDict{
			"score": starlark.String("score_func"),
			"band":  starlark.String("band_func"),
		},
	}))

	globals := registry.Globals()
	require.Len(t, globals, 1)

	mod, ok := globals["risk"].(starlark.HasAttrs)
	require.True(t, ok, "expected HasAttrs, got %T", globals["risk"])

	v, err := mod.Attr("score")
	require.NoError(t, err)
	assert.Equal(t, `"score_func"`, v.String())
	assert.Equal(t, []string{"band", "score"}, mod.AttrNames())

	_, err = mod.Attr("missing")
	assert.Error(t, err)
}

func TestStarlarkModule_Interface(t *testing.T) {
	mod := &starlarkModule{name: "risk", exports: starlark.StringDict{}}
	assert.Equal(t, "<module risk>", mod.String())
	assert.Equal(t, "module", mod.Type())
	assert.Equal(t, starlark.True, mod.Truth())
	_, err := mod.Hash()
	assert.Error(t, err)
}

func TestLoadAndRegister(t *testing.T) {
	registry, err := LoadAndRegister("/nonexistent/path")
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Len())

	dir := t.TempDir()
	writeMacro(t, dir, "math.star", "X = 1\n")
	_, err = LoadAndRegister(dir)
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr, "math is predeclared")
}

func TestMacrosInExpressions(t *testing.T) {
	dir := t.TempDir()
	writeMacro(t, dir, "risk.star", `
def score(age, los):
    """Risk score from age and length of stay."""
    if los == None:
        return None
    return age / 100.0 + los / 10.0
`)
	registry, err := LoadAndRegister(dir)
	require.NoError(t, err)

	ev, err := starctx.NewEvaluator("risk.score(age, los_days)", starctx.WithGlobals(registry.Globals()))
	require.NoError(t, err)

	values, err := ev.EvalRows(context.Background(),
		[]string{"age", "los_days", "risk"},
		[][]string{{"50", "5", "x"}, {"80", "", "y"}},
	)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "1.0", values[0].String())
	assert.Equal(t, starlark.None, values[1])
}
