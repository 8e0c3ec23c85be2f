package observe

import (
	"github.com/rip-projects/pants-observe/keypath"
	"github.com/rip-projects/pants-observe/pkg/activity"
)

// Handle is one live registration returned by Observe.
type Handle struct {
	ctx      *Context
	id       string
	path     *keypath.Path
	rootObj  any
	fn       Callback
	filter   *recordFilter
	args     map[string]any
	metadata map[string]any
	actor    activity.Actor

	// guarded by ctx.mu
	root      *node
	connected bool
}

// ID returns the registration ID.
func (h *Handle) ID() string {
	return h.id
}

// Path returns the compiled path being observed.
func (h *Handle) Path() *keypath.Path {
	return h.path
}

// Root returns the object the registration was made on.
func (h *Handle) Root() any {
	return h.rootObj
}

// Value reads the value currently at the observed path.
func (h *Handle) Value() any {
	return h.path.GetValueFrom(h.rootObj)
}

// Connected reports whether the registration is still live.
func (h *Handle) Connected() bool {
	h.ctx.mu.Lock()
	defer h.ctx.mu.Unlock()
	return h.connected
}

// Depth returns the number of objects currently subscribed for this
// registration, including whole-sequence watchers.
func (h *Handle) Depth() int {
	h.ctx.mu.Lock()
	defer h.ctx.mu.Unlock()
	count := 0
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil || !n.connected {
			return
		}
		count++
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(h.root)
	return count
}

// Disconnect tears the registration down, deepest subscriptions first, and
// drops it from the Context. Calling it again does nothing.
func (h *Handle) Disconnect() {
	c := h.ctx
	c.mu.Lock()
	if !h.connected {
		c.mu.Unlock()
		return
	}
	if h.root != nil {
		h.root.disconnect()
	}
	c.unindex(h)
	h.connected = false
	c.mu.Unlock()

	c.logger.LogEvent(LogEvent{Op: OpDisconnect, ID: h.id, Path: h.path.String()})
	c.emit([]activity.Event{c.lifecycleEvent(activity.BuildDisconnectedEvent, h, "", 0)})
}
