package observe

import (
	"context"

	"github.com/rip-projects/pants-observe/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified of registration
// lifecycle events. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := append(activity.Hooks(nil), hooks...)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on activity events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activityChannel = channel
	}
}

// WithActor records who the registration is made for on its activity
// events.
func WithActor(actor activity.Actor) ObserveOption {
	return func(reg *registration) {
		reg.actor = actor
	}
}

// ActivityHooks returns a copy of the configured activity hooks.
func (c *Context) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return c.emitter.Hooks()
}

func newEmitter(cfg config) *activity.Emitter {
	return activity.NewEmitter(cfg.activityHooks, activity.Config{
		Enabled: true,
		Channel: cfg.activityChannel,
	})
}

func (c *Context) lifecycleEvent(build func(activity.ObservationEventInput) activity.Event, h *Handle, segment string, depth int) activity.Event {
	return build(activity.ObservationEventInput{
		RegistrationID: h.id,
		Path:           h.path.String(),
		Segment:        segment,
		Strategy:       c.strategy,
		Depth:          depth,
		Actor:          h.actor,
		Metadata:       h.metadata,
	})
}

// emit forwards events to the activity hooks. Hook failures are logged and
// never interrupt observation.
func (c *Context) emit(events []activity.Event) {
	if len(events) == 0 || !c.emitter.Enabled() {
		return
	}
	for _, event := range events {
		if err := c.emitter.Emit(context.Background(), event); err != nil {
			c.logger.LogEvent(LogEvent{
				Op:   OpActivity,
				ID:   event.RegistrationID,
				Path: event.Path,
				Err:  err,
			})
		}
	}
}
