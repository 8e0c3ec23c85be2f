package graph

// Export returns a plain copy of v built from map[string]any and []any, so
// it can be handed to expression engines or encoders that know nothing
// about Object and Array. A container reached again through its own
// descendants is exported as nil.
func Export(v any) any {
	return export(v, map[ID]bool{})
}

func export(v any, visiting map[ID]bool) any {
	id, hasID := Identity(v)
	if hasID {
		if visiting[id] {
			return nil
		}
		visiting[id] = true
		defer delete(visiting, id)
	}
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		out := make(map[string]any, t.Len())
		t.Range(func(key string, value any) bool {
			out[key] = export(value, visiting)
			return true
		})
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, value := range t {
			out[key] = export(value, visiting)
		}
		return out
	case *Array:
		if t == nil {
			return nil
		}
		items := t.Values()
		out := make([]any, len(items))
		for i, value := range items {
			out[i] = export(value, visiting)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, value := range t {
			out[i] = export(value, visiting)
		}
		return out
	}
	return v
}
