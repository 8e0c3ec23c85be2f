package graph

import "sort"

// Object is an insertion-ordered string-keyed container with reference
// identity. It reports its own mutations to attached hooks. Object is not
// safe for concurrent use.
type Object struct {
	keys   []string
	values map[string]any
	hooks  hookSet
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: map[string]any{}}
}

// ObjectFromMap copies m into a new Object with keys in sorted order.
func ObjectFromMap(m map[string]any) *Object {
	o := NewObject()
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		o.keys = append(o.keys, key)
		o.values[key] = m[key]
	}
	return o
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	value, ok := o.values[key]
	return value, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set stores value under key. Assigning the value already held is not a
// mutation and produces no record.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = map[string]any{}
	}
	old, had := o.values[key]
	if had && Same(old, value) {
		return
	}
	o.values[key] = value
	if !had {
		o.keys = append(o.keys, key)
		o.hooks.emit([]Change{AddChange(o, key)})
		return
	}
	o.hooks.emit([]Change{UpdateChange(o, key, old)})
}

// Delete removes key, reporting whether it was present.
func (o *Object) Delete(key string) bool {
	if o == nil {
		return false
	}
	old, had := o.values[key]
	if !had {
		return false
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i:i], o.keys[i+1:]...)
			break
		}
	}
	o.hooks.emit([]Change{DeleteChange(o, key, old)})
	return true
}

// Range calls fn for each entry in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, value any) bool) {
	if o == nil {
		return
	}
	for _, key := range o.Keys() {
		value, ok := o.values[key]
		if !ok {
			continue
		}
		if !fn(key, value) {
			return
		}
	}
}

// ToMap returns a shallow copy of the entries.
func (o *Object) ToMap() map[string]any {
	if o == nil {
		return nil
	}
	out := make(map[string]any, len(o.values))
	for key, value := range o.values {
		out[key] = value
	}
	return out
}

// AddHook attaches fn and returns its id.
func (o *Object) AddHook(fn Hook) HookID {
	return o.hooks.add(fn)
}

// RemoveHook detaches the hook registered under id.
func (o *Object) RemoveHook(id HookID) bool {
	return o.hooks.remove(id)
}
