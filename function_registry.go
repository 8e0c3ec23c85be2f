package observe

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rip-projects/pants-observe/graph"
)

// Function represents a callable registered against evaluators.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("observe: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("observe: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("observe: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("observe: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("observe: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry makes registry's functions callable from filter expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for filter expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// Len returns the number of registered functions.
func (r *FunctionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.functions)
}

// NewGraphFunctionRegistry returns a registry preloaded with helpers for
// inspecting observed values:
//
//	kindof(v)    "scalar", "mapping" or "sequence"
//	isindex(key) whether key is a canonical sequence index
//	haskey(v, k) whether the container v holds key k
func NewGraphFunctionRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("kindof", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("observe: kindof expects 1 argument, got %d", len(args))
		}
		return graph.KindOf(args[0]).String(), nil
	})
	_ = r.Register("isindex", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("observe: isindex expects 1 argument, got %d", len(args))
		}
		key, ok := args[0].(string)
		return ok && graph.IsIndex(key), nil
	})
	_ = r.Register("haskey", func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("observe: haskey expects 2 arguments, got %d", len(args))
		}
		key := fmt.Sprint(args[1])
		_, ok := graph.Lookup(args[0], key)
		return ok, nil
	})
	return r
}
