package notify

import (
	"fmt"

	"github.com/rip-projects/pants-observe/graph"
)

// Native watches containers that report their own mutations through
// graph.Observable. Batches are delivered synchronously from inside the
// mutating call, in the order the container produced them.
type Native struct {
	reg   *Registry
	stats counters
}

var _ Notifier = (*Native)(nil)

// NewNative constructs a Native notifier. Delivery is synchronous, so the
// interval, tick and logger options have nothing to act on.
func NewNative(opts ...Option) *Native {
	return &Native{reg: NewRegistry()}
}

// Subscribe implements Notifier. Values that do not implement
// graph.Observable, such as plain maps, yield ErrNotObservable.
func (n *Native) Subscribe(obj any, fn Callback) (SubscriptionID, error) {
	observable, ok := obj.(graph.Observable)
	if !ok {
		return 0, fmt.Errorf("%w: %T has no mutation hooks", ErrNotObservable, obj)
	}
	id, err := n.reg.add(obj, fn, func(e *entry) error {
		e.hook = observable.AddHook(func(changes []graph.Change) {
			if n.reg.deliver(e, changes) {
				n.stats.delivered(len(changes))
			}
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Unsubscribe implements Notifier. The container hook is released with the
// last subscription.
func (n *Native) Unsubscribe(obj any, id SubscriptionID) bool {
	removed, emptied := n.reg.remove(obj, id)
	if emptied != nil {
		n.release(emptied)
	}
	return removed
}

// Notifier implements Notifier.
func (n *Native) Notifier(obj any) *ObjectNotifier {
	return objectNotifier(n.reg, obj, &n.stats)
}

// Len implements Notifier.
func (n *Native) Len() int {
	return n.reg.Len()
}

// Registry exposes the subscription registry.
func (n *Native) Registry() *Registry {
	return n.reg
}

// Stats returns the delivery counters.
func (n *Native) Stats() Stats {
	return n.stats.snapshot(n.reg.Len())
}

// Close implements Notifier.
func (n *Native) Close() {
	for _, e := range n.reg.clear() {
		n.release(e)
	}
}

func (n *Native) release(e *entry) {
	if observable, ok := e.object.(graph.Observable); ok {
		observable.RemoveHook(e.hook)
	}
}
