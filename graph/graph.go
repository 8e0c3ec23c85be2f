package graph

import (
	"reflect"
	"strconv"
	"unsafe"
)

// Kind classifies a value once so callers can dispatch on container shape
// without re-detecting it.
type Kind uint8

const (
	// KindScalar covers every value that cannot hold keyed children.
	KindScalar Kind = iota
	// KindMapping covers *Object and map[string]any.
	KindMapping
	// KindSequence covers *Array and []any.
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "scalar"
	}
}

// KindOf reports the container kind of v. Nil containers are scalars.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case *Object:
		if t != nil {
			return KindMapping
		}
	case map[string]any:
		if t != nil {
			return KindMapping
		}
	case *Array:
		if t != nil {
			return KindSequence
		}
	case []any:
		if t != nil {
			return KindSequence
		}
	}
	return KindScalar
}

// IsStructured reports whether v can be traversed by key.
func IsStructured(v any) bool {
	return KindOf(v) != KindScalar
}

// ID identifies a container by reference rather than by value.
type ID struct {
	ptr unsafe.Pointer
}

// Identity returns the identity key of v. Only containers whose identity
// survives mutation qualify: *Object, *Array and map[string]any.
func Identity(v any) (ID, bool) {
	switch t := v.(type) {
	case *Object:
		if t != nil {
			return ID{ptr: unsafe.Pointer(t)}, true
		}
	case *Array:
		if t != nil {
			return ID{ptr: unsafe.Pointer(t)}, true
		}
	case map[string]any:
		if t != nil {
			return ID{ptr: reflect.ValueOf(t).UnsafePointer()}, true
		}
	}
	return ID{}, false
}

// Same compares two values by reference for containers and by == for
// comparable values. Values that are neither are never the same.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return a == b
	}
	return false
}

// Lookup reads key from container. Sequences only accept canonical index
// keys.
func Lookup(container any, key string) (any, bool) {
	switch t := container.(type) {
	case *Object:
		if t == nil {
			return nil, false
		}
		return t.Get(key)
	case map[string]any:
		value, ok := t[key]
		return value, ok
	case *Array:
		idx, ok := ParseIndex(key)
		if !ok || t == nil {
			return nil, false
		}
		return t.At(idx)
	case []any:
		idx, ok := ParseIndex(key)
		if !ok || idx >= len(t) {
			return nil, false
		}
		return t[idx], true
	}
	return nil, false
}

// Assign writes value at key inside container. Plain slices cannot grow, so
// out-of-range writes on them fail.
func Assign(container any, key string, value any) bool {
	switch t := container.(type) {
	case *Object:
		if t == nil {
			return false
		}
		t.Set(key, value)
		return true
	case map[string]any:
		if t == nil {
			return false
		}
		t[key] = value
		return true
	case *Array:
		idx, ok := ParseIndex(key)
		if !ok || t == nil {
			return false
		}
		return t.SetAt(idx, value)
	case []any:
		idx, ok := ParseIndex(key)
		if !ok || idx >= len(t) {
			return false
		}
		t[idx] = value
		return true
	}
	return false
}

// IsIndex reports whether key is a canonical non-negative integer that fits
// in 32 bits, the form array indexes take.
func IsIndex(key string) bool {
	_, ok := ParseIndex(key)
	return ok
}

// ParseIndex converts a canonical index key into an int.
func ParseIndex(key string) (int, bool) {
	if key == "" || len(key) > 10 {
		return 0, false
	}
	if len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}
