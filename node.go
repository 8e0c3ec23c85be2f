package observe

import (
	"errors"
	"fmt"

	"github.com/rip-projects/pants-observe/graph"
	"github.com/rip-projects/pants-observe/keypath"
	"github.com/rip-projects/pants-observe/notify"
	"github.com/rip-projects/pants-observe/pkg/activity"
)

// node watches one object on behalf of a registration. path is what remains
// of the registration's path at this depth: the node reacts to changes of
// path.Key(0) and is terminal when that is the last key. A node with an
// empty path watches a whole sequence and forwards every batch. A terminal
// node remembers the leaf value it last reported in last.
type node struct {
	handle    *Handle
	object    any
	path      *keypath.Path
	depth     int
	sub       notify.SubscriptionID
	connected bool
	children  []*node
	last      any
	hasLast   bool
}

type delivery struct {
	handle  *Handle
	changes []graph.Change
}

// batch collects what a notification produced while the Context lock is
// held; it is acted upon once the lock is released.
type batch struct {
	deliveries []delivery
	events     []activity.Event
	logs       []LogEvent
}

func (b *batch) log(event LogEvent) {
	b.logs = append(b.logs, event)
}

func (b *batch) deliver(h *Handle, changes []graph.Change) {
	if len(changes) == 0 {
		return
	}
	b.deliveries = append(b.deliveries, delivery{handle: h, changes: changes})
}

func newNode(h *Handle, object any, path *keypath.Path, depth int) *node {
	return &node{handle: h, object: object, path: path, depth: depth}
}

func (n *node) ctx() *Context {
	return n.handle.ctx
}

func (n *node) connect() error {
	if n.connected {
		return nil
	}
	id, err := n.ctx().notifier.Subscribe(n.object, n.onChanges)
	if err != nil {
		return err
	}
	n.sub = id
	n.connected = true
	return nil
}

// disconnect tears the subtree down children first. Calling it again is a
// no-op.
func (n *node) disconnect() {
	if !n.connected {
		return
	}
	for _, child := range n.children {
		child.disconnect()
	}
	n.children = nil
	n.ctx().notifier.Unsubscribe(n.object, n.sub)
	n.connected = false
}

// onChanges is the notifier callback.
func (n *node) onChanges(changes []graph.Change) {
	c := n.ctx()
	var out batch
	c.mu.Lock()
	if !n.connected {
		c.mu.Unlock()
		return
	}
	n.process(changes, &out)
	c.mu.Unlock()

	c.logAll(out.logs)
	c.emit(out.events)
	c.flush(out.deliveries)
}

// process interprets one batch for this node. Callers hold the Context lock.
func (n *node) process(changes []graph.Change, out *batch) {
	if n.path.Len() == 0 {
		out.deliver(n.handle, changes)
		return
	}

	key := n.path.Key(0)
	matched := n.match(changes, key)
	if len(matched) == 0 {
		return
	}
	if n.path.Len() == 1 {
		n.terminal(key, matched, out)
		return
	}
	n.rewire(key, out)
}

// match keeps the records naming key, first record per name wins. When the
// node watches a sequence, a splice at or before the watched index also
// counts as a change of that index.
func (n *node) match(changes []graph.Change, key string) []graph.Change {
	index, isIndex := -1, false
	if graph.KindOf(n.object) == graph.KindSequence {
		index, isIndex = graph.ParseIndex(key)
	}
	seen := map[string]bool{}
	var matched []graph.Change
	for _, change := range changes {
		name := change.Key()
		if seen[name] {
			continue
		}
		switch {
		case change.IsSplice():
			if !isIndex || change.Index > index {
				continue
			}
		case change.Name != key:
			continue
		}
		seen[name] = true
		matched = append(matched, change)
	}
	return matched
}

// terminal handles a change of the watched leaf. A sequence leaf gets a
// whole-sequence child so element changes are reported too; the child of a
// value no longer at the leaf is torn down.
func (n *node) terminal(key string, matched []graph.Change, out *batch) {
	current, _ := graph.Lookup(n.object, key)
	matched = n.dropUnmoved(matched, current)
	n.last, n.hasLast = current, true
	if len(matched) == 0 {
		return
	}

	kept := n.children[:0]
	watching := false
	for _, child := range n.children {
		if child.path.Len() == 0 && graph.Same(child.object, current) {
			kept = append(kept, child)
			watching = true
			continue
		}
		child.disconnect()
	}
	n.children = kept

	if !watching && graph.KindOf(current) == graph.KindSequence {
		if err := n.attachWhole(current); err != nil {
			out.log(LogEvent{
				Op:   OpAttach,
				ID:   n.handle.id,
				Path: n.handle.path.String(),
				Err:  err,
			})
		}
	}

	out.deliver(n.handle, matched)
}

// dropUnmoved discards splice records while the leaf still holds the value
// last reported.
func (n *node) dropUnmoved(matched []graph.Change, current any) []graph.Change {
	if !n.hasLast || !graph.Same(n.last, current) {
		return matched
	}
	kept := matched[:0]
	for _, change := range matched {
		if !change.IsSplice() {
			kept = append(kept, change)
		}
	}
	return kept
}

// attachWhole subscribes a child to the entire sequence. Panics raised by
// the notifier are turned into errors here, the only place a failure while
// wiring does not abort delivery.
func (n *node) attachWhole(seq any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observe: attach panicked: %v", r)
		}
	}()
	child := newNode(n.handle, seq, n.path.Suffix(n.path.Len()), n.depth+1)
	if err := child.connect(); err != nil {
		return err
	}
	n.children = append(n.children, child)
	return nil
}

// rewire rebuilds the chain below an intermediate key whose value changed,
// then primes the new child so the rest of the chain is built right away.
// A chain already watching the value now at key is left alone.
func (n *node) rewire(key string, out *batch) {
	next, _ := graph.Lookup(n.object, key)
	if len(n.children) == 1 && n.children[0].connected && graph.Same(n.children[0].object, next) {
		return
	}

	for _, child := range n.children {
		child.disconnect()
	}
	n.children = nil

	child := newNode(n.handle, placeholder(next), n.path.Suffix(1), n.depth+1)
	if err := child.connect(); err != nil {
		if !errors.Is(err, notify.ErrNotObservable) {
			out.log(LogEvent{Op: OpRewire, ID: n.handle.id, Path: n.handle.path.String(), Err: err})
			return
		}
		out.log(LogEvent{Op: OpAttach, ID: n.handle.id, Path: n.handle.path.String(), Err: err})
		child.object = graph.NewObject()
		if err := child.connect(); err != nil {
			out.log(LogEvent{Op: OpRewire, ID: n.handle.id, Path: n.handle.path.String(), Err: err})
			return
		}
	}
	n.children = append(n.children, child)

	c := n.ctx()
	out.log(LogEvent{
		Op:     OpRewire,
		ID:     n.handle.id,
		Path:   n.handle.path.String(),
		Detail: child.path.String(),
	})
	out.events = append(out.events, c.lifecycleEvent(activity.BuildRewiredEvent, n.handle, child.path.String(), child.depth))

	child.process([]graph.Change{graph.AddChange(child.object, child.path.Key(0))}, out)
}

// placeholder substitutes an empty object for values that cannot hold keys.
func placeholder(v any) any {
	if _, ok := graph.Identity(v); ok {
		return v
	}
	return graph.NewObject()
}
