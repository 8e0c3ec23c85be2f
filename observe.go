// Package observe watches values reachable through a property path inside a
// mutable object graph and reports their changes.
//
// A registration binds a root object, a path such as "a.b[2].c" and a
// callback. The Context subscribes to every object along the path and, when
// an intermediate object is replaced, tears down the subscriptions below it
// and rebuilds them over the new value. Changes of the terminal value are
// delivered to the callback as graph.Change records; when the terminal value
// is a sequence its element changes are delivered as well.
//
// Data flow:
//
//	keypath.Get(path) -> Context.Observe -> notify.Notifier -> node -> Callback
//
// Change detection is pluggable through notify.Notifier: the polling diff
// engine works with any *graph.Object, *graph.Array or map[string]any, the
// native strategy relies on the hooks of graph containers.
package observe

import "sync"

var (
	defaultOnce    sync.Once
	defaultContext *Context
)

// Default returns the process-wide Context used by Observe. It polls with
// the default interval.
func Default() *Context {
	defaultOnce.Do(func() {
		defaultContext = New()
	})
	return defaultContext
}

// Observe registers fn on the Default context.
func Observe(root any, path any, fn Callback, opts ...ObserveOption) (*Handle, error) {
	return Default().Observe(root, path, fn, opts...)
}
