package keypath

import (
	"fmt"
	"strconv"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/rip-projects/pants-observe/graph"
)

// ReadFunc reads the value a prepared path addresses inside root.
type ReadFunc func(root any) any

// Getter prepares a reader for a non-empty key sequence. Every strategy
// must agree with the generic walk; they only differ in cost.
type Getter interface {
	Prepare(keys []string) ReadFunc
}

// WalkGetter walks the keys on every read.
type WalkGetter struct{}

// Prepare implements Getter.
func (WalkGetter) Prepare(keys []string) ReadFunc {
	keys = append([]string(nil), keys...)
	return func(root any) any {
		return walk(keys, root)
	}
}

// CompiledGetter resolves each key into a specialized step once, so reads
// skip index parsing and kind detection for keys that cannot be indexes.
type CompiledGetter struct{}

type step func(obj any) (any, bool)

// Prepare implements Getter.
func (CompiledGetter) Prepare(keys []string) ReadFunc {
	steps := make([]step, len(keys))
	for i, key := range keys {
		steps[i] = compileStep(key)
	}
	return func(root any) any {
		obj := root
		for _, s := range steps {
			if obj == nil {
				return nil
			}
			obj, _ = s(obj)
		}
		return obj
	}
}

func compileStep(key string) step {
	idx, isIndex := graph.ParseIndex(key)
	if !isIndex {
		return func(obj any) (any, bool) {
			if m, ok := obj.(map[string]any); ok {
				v, ok := m[key]
				return v, ok
			}
			return graph.Lookup(obj, key)
		}
	}
	return func(obj any) (any, bool) {
		switch t := obj.(type) {
		case *graph.Array:
			if t != nil {
				return t.At(idx)
			}
		case []any:
			if idx < len(t) {
				return t[idx], true
			}
			return nil, false
		}
		return graph.Lookup(obj, key)
	}
}

// ExprGetter evaluates one expr-lang program per path, chaining a lookup
// function bound to the graph accessors. It falls back to the walk when the
// program cannot be compiled or run.
type ExprGetter struct{}

// Prepare implements Getter.
func (ExprGetter) Prepare(keys []string) ReadFunc {
	fallback := WalkGetter{}.Prepare(keys)
	program, err := compileExprReader(keys)
	if err != nil {
		return fallback
	}
	return func(root any) any {
		out, err := exprlang.Run(program, map[string]any{"obj": root})
		if err != nil {
			return fallback(root)
		}
		return out
	}
}

// ExprSource renders the lookup chain for keys, for example
// lookup(lookup(obj, "a"), "0").
func ExprSource(keys []string) string {
	var b strings.Builder
	for range keys {
		b.WriteString("lookup(")
	}
	b.WriteString("obj")
	for _, key := range keys {
		b.WriteString(", ")
		b.WriteString(strconv.Quote(key))
		b.WriteString(")")
	}
	return b.String()
}

func lookupFunc(params ...any) (any, error) {
	if len(params) != 2 {
		return nil, fmt.Errorf("keypath: lookup expects 2 arguments, got %d", len(params))
	}
	key, ok := params[1].(string)
	if !ok {
		return nil, fmt.Errorf("keypath: lookup key must be a string, got %T", params[1])
	}
	if params[0] == nil {
		return nil, nil
	}
	v, _ := graph.Lookup(params[0], key)
	return v, nil
}

func compileExprReader(keys []string) (*exprvm.Program, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keypath: empty reader expression")
	}
	return exprlang.Compile(ExprSource(keys),
		exprlang.Env(map[string]any{"obj": nil}),
		exprlang.AllowUndefinedVariables(),
		exprlang.Function("lookup", lookupFunc),
	)
}
