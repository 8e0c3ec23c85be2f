package keypath

import "github.com/rip-projects/pants-observe/graph"

// GetValueFrom reads the value the path addresses inside root. A missing or
// non-structured intermediate yields nil. The empty path addresses root
// itself; the invalid path always yields nil.
func (p *Path) GetValueFrom(root any) any {
	p.guard()
	if p == nil || !p.valid {
		return nil
	}
	if len(p.keys) == 0 {
		return root
	}
	return p.read(root)
}

// SetValueFrom assigns value at the path inside root. It returns false
// without mutating anything when an intermediate is not structured, and for
// empty or invalid paths.
func (p *Path) SetValueFrom(root any, value any) bool {
	p.guard()
	if p == nil || !p.valid || len(p.keys) == 0 {
		return false
	}
	obj := root
	last := len(p.keys) - 1
	for i := 0; i < last; i++ {
		if !graph.IsStructured(obj) {
			return false
		}
		obj, _ = graph.Lookup(obj, p.keys[i])
	}
	if !graph.IsStructured(obj) {
		return false
	}
	return graph.Assign(obj, p.keys[last], value)
}

// IterateObjects calls visit with each intermediate object and the key read
// from it, stopping at the first value that is not structured.
func (p *Path) IterateObjects(root any, visit func(obj any, key string)) {
	p.guard()
	if p == nil || !p.valid || visit == nil {
		return
	}
	obj := root
	for i, key := range p.keys {
		if i > 0 {
			obj, _ = graph.Lookup(obj, p.keys[i-1])
		}
		if !graph.IsStructured(obj) {
			return
		}
		visit(obj, key)
	}
}

func walk(keys []string, obj any) any {
	for _, key := range keys {
		if obj == nil {
			return nil
		}
		obj, _ = graph.Lookup(obj, key)
	}
	return obj
}
