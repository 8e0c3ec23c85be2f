package graph

// HookID identifies a hook attached to an Observable container.
type HookID uint64

// Hook receives the records produced by one mutation, synchronously, after
// the mutation has been applied.
type Hook func(changes []Change)

// Observable is implemented by containers that report their own mutations.
type Observable interface {
	AddHook(fn Hook) HookID
	RemoveHook(id HookID) bool
}

type hookEntry struct {
	id HookID
	fn Hook
}

type hookSet struct {
	next    HookID
	entries []hookEntry
}

func (h *hookSet) add(fn Hook) HookID {
	h.next++
	h.entries = append(h.entries, hookEntry{id: h.next, fn: fn})
	return h.next
}

func (h *hookSet) remove(id HookID) bool {
	for i, entry := range h.entries {
		if entry.id == id {
			h.entries = append(h.entries[:i:i], h.entries[i+1:]...)
			return true
		}
	}
	return false
}

// emit calls every hook registered at emission time. Hooks removed by an
// earlier hook in the same emission are skipped.
func (h *hookSet) emit(changes []Change) {
	if len(h.entries) == 0 || len(changes) == 0 {
		return
	}
	pending := append([]hookEntry(nil), h.entries...)
	for _, entry := range pending {
		if !h.has(entry.id) {
			continue
		}
		entry.fn(changes)
	}
}

func (h *hookSet) has(id HookID) bool {
	for _, entry := range h.entries {
		if entry.id == id {
			return true
		}
	}
	return false
}
