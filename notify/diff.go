package notify

import (
	"sort"

	"github.com/rip-projects/pants-observe/graph"
)

// shadow is a shallow copy of a container's own entries. Nested containers
// are kept by reference, so replacing one shows up as a single update.
type shadow struct {
	keys   []string
	values map[string]any
	items  []any
}

func capture(kind graph.Kind, obj any) shadow {
	switch kind {
	case graph.KindSequence:
		switch t := obj.(type) {
		case *graph.Array:
			return shadow{items: t.Values()}
		case []any:
			return shadow{items: append([]any(nil), t...)}
		}
	case graph.KindMapping:
		switch t := obj.(type) {
		case *graph.Object:
			values := make(map[string]any, t.Len())
			keys := make([]string, 0, t.Len())
			t.Range(func(key string, value any) bool {
				keys = append(keys, key)
				values[key] = value
				return true
			})
			return shadow{keys: keys, values: values}
		case map[string]any:
			values := make(map[string]any, len(t))
			keys := make([]string, 0, len(t))
			for key, value := range t {
				keys = append(keys, key)
				values[key] = value
			}
			sort.Strings(keys)
			return shadow{keys: keys, values: values}
		}
	}
	return shadow{}
}

// diff compares the previous shadow of obj with next, a fresh capture.
func diff(kind graph.Kind, obj any, prev, next shadow) []graph.Change {
	switch kind {
	case graph.KindSequence:
		return diffSequence(obj, prev.items, next.items)
	case graph.KindMapping:
		return diffMapping(obj, prev, next)
	}
	return nil
}

// diffMapping emits one record per key in the union of old and new keys,
// old keys first, each group in its enumeration order.
func diffMapping(obj any, prev, next shadow) []graph.Change {
	var changes []graph.Change
	visit := func(key string) {
		oldValue, hadOld := prev.values[key]
		newValue, hasNew := next.values[key]
		switch {
		case hadOld && !hasNew:
			changes = append(changes, graph.DeleteChange(obj, key, oldValue))
		case !hadOld && hasNew:
			changes = append(changes, graph.AddChange(obj, key))
		case hadOld && hasNew && !graph.Same(oldValue, newValue):
			changes = append(changes, graph.UpdateChange(obj, key, oldValue))
		}
	}
	for _, key := range prev.keys {
		visit(key)
	}
	for _, key := range next.keys {
		if _, seen := prev.values[key]; seen {
			continue
		}
		visit(key)
	}
	return changes
}

// diffSequence collapses every difference into one splice record. Index is
// the first differing position; Removed holds old values at positions that
// no longer exist and AddedCount the number of positions that are new. This
// describes that something changed, not a minimal edit script.
func diffSequence(obj any, prev, next []any) []graph.Change {
	n := len(prev)
	if len(next) > n {
		n = len(next)
	}
	index := -1
	var removed []any
	added := 0
	for i := 0; i < n; i++ {
		hadOld := i < len(prev)
		hasNew := i < len(next)
		if hadOld && hasNew && graph.Same(prev[i], next[i]) {
			continue
		}
		if index < 0 {
			index = i
		}
		if !hasNew {
			removed = append(removed, prev[i])
		}
		if !hadOld {
			added++
		}
	}
	if index < 0 {
		return nil
	}
	if removed == nil {
		removed = []any{}
	}
	return []graph.Change{graph.SpliceChange(obj, index, removed, added)}
}
