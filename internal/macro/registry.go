package macro

import (
	"fmt"
	"sort"

	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
	"go.starlark.net/starlark"
)

// ReservedNamespaces cannot be used as macro file names because expressions
// already see them as globals.
var ReservedNamespaces = []string{"math", starctx.RowGlobal}

// Registry holds loaded macro modules by namespace.
type Registry struct {
	modules map[string]*LoadedModule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*LoadedModule)}
}

// Register adds a module. Reserved and duplicate namespaces are rejected.
func (r *Registry) Register(m *LoadedModule) error {
	for _, reserved := range ReservedNamespaces {
		if m.Namespace == reserved {
			return &RegistryError{Namespace: m.Namespace, Message: "namespace is reserved"}
		}
	}
	if existing, ok := r.modules[m.Namespace]; ok {
		return &RegistryError{
			Namespace: m.Namespace,
			Message:   fmt.Sprintf("already defined in %s", existing.Path),
		}
	}
	r.modules[m.Namespace] = m
	return nil
}

// RegisterAll registers modules in order and stops at the first error.
func (r *Registry) RegisterAll(modules []*LoadedModule) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the module for namespace, or nil.
func (r *Registry) Get(namespace string) *LoadedModule {
	return r.modules[namespace]
}

// Has reports whether namespace is registered.
func (r *Registry) Has(namespace string) bool {
	_, ok := r.modules[namespace]
	return ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Globals returns one module value per namespace, ready to be added to an
// expression's predeclared globals.
func (r *Registry) Globals() starlark.StringDict {
	globals := make(starlark.StringDict, len(r.modules))
	for name, m := range r.modules {
		globals[name] = &starlarkModule{name: name, exports: m.Exports}
	}
	return globals
}

// LoadAndRegister loads every macro file in dir into a new registry.
func LoadAndRegister(dir string) (*Registry, error) {
	modules, err := NewLoader(dir).Load()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	if err := registry.RegisterAll(modules); err != nil {
		return nil, err
	}
	return registry, nil
}

// starlarkModule exposes a namespace's exports as attributes.
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*starlarkModule)(nil)

func (m *starlarkModule) String() string        { return "<module " + m.name + ">" }
func (m *starlarkModule) Type() string          { return "module" }
func (m *starlarkModule) Freeze()               { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool  { return starlark.True }
func (m *starlarkModule) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: module") }

func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("module %s has no attribute %s", m.name, name)
}

func (m *starlarkModule) AttrNames() []string {
	return m.exports.Keys()
}

// RegistryError reports a module that could not be registered.
type RegistryError struct {
	Namespace string
	Message   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("macro namespace %q: %s", e.Namespace, e.Message)
}
