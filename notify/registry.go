package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rip-projects/pants-observe/graph"
)

type subscriber struct {
	id     SubscriptionID
	fn     Callback
	active atomic.Bool
}

// entry is one watched object. kind is decided when the entry is created and
// never re-detected.
type entry struct {
	id      graph.ID
	object  any
	kind    graph.Kind
	subs    []*subscriber
	removed bool

	// shadow is owned by the poller's sweep.
	shadow shadow
	// hook is owned by the native strategy.
	hook graph.HookID
}

// Registry maps watched objects, by identity, to their subscribers. Sweeps
// iterate a snapshot, so entries may be added or removed by callbacks while
// a sweep is running; removed entries are skipped, the rest are unaffected.
type Registry struct {
	mu      sync.Mutex
	entries map[graph.ID]*entry
	order   []*entry
	nextID  SubscriptionID
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[graph.ID]*entry{}}
}

// Len returns the number of watched objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Has reports whether obj is watched.
func (r *Registry) Has(obj any) bool {
	return r.lookup(obj) != nil
}

// Subscribers returns the number of live subscriptions on obj.
func (r *Registry) Subscribers(obj any) int {
	id, ok := graph.Identity(obj)
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return len(e.subs)
	}
	return 0
}

// add subscribes fn to obj. init runs under the registry lock when obj was
// not watched yet; an init error leaves the registry unchanged.
func (r *Registry) add(obj any, fn Callback, init func(*entry) error) (SubscriptionID, error) {
	if fn == nil {
		return 0, fmt.Errorf("notify: nil callback")
	}
	id, ok := graph.Identity(obj)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrNotObservable, obj)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{id: id, object: obj, kind: graph.KindOf(obj)}
		if init != nil {
			if err := init(e); err != nil {
				return 0, err
			}
		}
		r.entries[id] = e
		r.order = append(r.order, e)
	}
	r.nextID++
	sub := &subscriber{id: r.nextID, fn: fn}
	sub.active.Store(true)
	e.subs = append(e.subs, sub)
	return sub.id, nil
}

// remove drops one subscription. When it was the object's last one the entry
// is removed as well and returned so the caller can release its resources.
func (r *Registry) remove(obj any, subID SubscriptionID) (removed bool, emptied *entry) {
	id, ok := graph.Identity(obj)
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false, nil
	}
	for i, sub := range e.subs {
		if sub.id != subID {
			continue
		}
		sub.active.Store(false)
		e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
		removed = true
		break
	}
	if !removed {
		return false, nil
	}
	if len(e.subs) > 0 {
		return true, nil
	}
	r.dropLocked(e)
	return true, e
}

func (r *Registry) dropLocked(e *entry) {
	e.removed = true
	delete(r.entries, e.id)
	for i, candidate := range r.order {
		if candidate == e {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// clear removes every entry and returns them.
func (r *Registry) clear() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.order
	for _, e := range out {
		e.removed = true
		for _, sub := range e.subs {
			sub.active.Store(false)
		}
	}
	r.entries = map[graph.ID]*entry{}
	r.order = nil
	return out
}

func (r *Registry) lookup(obj any) *entry {
	id, ok := graph.Identity(obj)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

// snapshot returns the watched entries in registration order.
func (r *Registry) snapshot() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entry(nil), r.order...)
}

func (r *Registry) live(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !e.removed
}

// deliver hands changes to every subscriber registered when delivery starts.
// Subscribers removed by an earlier callback of the same delivery are
// skipped. Callbacks run without the registry lock held.
func (r *Registry) deliver(e *entry, changes []graph.Change) bool {
	r.mu.Lock()
	if e.removed {
		r.mu.Unlock()
		return false
	}
	subs := append([]*subscriber(nil), e.subs...)
	r.mu.Unlock()

	delivered := false
	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		sub.fn(changes)
		delivered = true
	}
	return delivered
}
