package graph

import "strconv"

// Array is a growable sequence with reference identity. Element writes are
// reported as update records named by index, length changes as splices.
// Array is not safe for concurrent use.
type Array struct {
	items []any
	hooks hookSet
}

// NewArray returns an Array holding a copy of items.
func NewArray(items ...any) *Array {
	return &Array{items: append([]any(nil), items...)}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// At returns the element at index i.
func (a *Array) At(i int) (any, bool) {
	if a == nil || i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

// Values returns a copy of the elements.
func (a *Array) Values() []any {
	if a == nil {
		return nil
	}
	return append([]any(nil), a.items...)
}

// SetAt replaces the element at i. Writing at Len() appends.
func (a *Array) SetAt(i int, value any) bool {
	if i < 0 || i > len(a.items) {
		return false
	}
	if i == len(a.items) {
		a.Push(value)
		return true
	}
	old := a.items[i]
	if Same(old, value) {
		return true
	}
	a.items[i] = value
	a.hooks.emit([]Change{UpdateChange(a, strconv.Itoa(i), old)})
	return true
}

// Push appends values and returns the new length.
func (a *Array) Push(values ...any) int {
	if len(values) == 0 {
		return len(a.items)
	}
	index := len(a.items)
	a.items = append(a.items, values...)
	a.hooks.emit([]Change{SpliceChange(a, index, []any{}, len(values))})
	return len(a.items)
}

// Pop removes and returns the last element.
func (a *Array) Pop() (any, bool) {
	if a == nil || len(a.items) == 0 {
		return nil, false
	}
	index := len(a.items) - 1
	last := a.items[index]
	a.items[index] = nil
	a.items = a.items[:index]
	a.hooks.emit([]Change{SpliceChange(a, index, []any{last}, 0)})
	return last, true
}

// Splice removes deleteCount elements at start, inserts values in their
// place and returns the removed elements. Out-of-range arguments are
// clamped.
func (a *Array) Splice(start, deleteCount int, values ...any) []any {
	if start < 0 {
		start = 0
	}
	if start > len(a.items) {
		start = len(a.items)
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > len(a.items) {
		deleteCount = len(a.items) - start
	}
	removed := append([]any{}, a.items[start:start+deleteCount]...)

	next := make([]any, 0, len(a.items)-deleteCount+len(values))
	next = append(next, a.items[:start]...)
	next = append(next, values...)
	next = append(next, a.items[start+deleteCount:]...)
	a.items = next

	if len(removed) == 0 && len(values) == 0 {
		return removed
	}
	a.hooks.emit([]Change{SpliceChange(a, start, removed, len(values))})
	return removed
}

// AddHook attaches fn and returns its id.
func (a *Array) AddHook(fn Hook) HookID {
	return a.hooks.add(fn)
}

// RemoveHook detaches the hook registered under id.
func (a *Array) RemoveHook(id HookID) bool {
	return a.hooks.remove(id)
}
