package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is one registration lifecycle occurrence. Segment and Depth are only
// set on rewired events.
type Event struct {
	Verb           string
	RegistrationID string
	Path           string
	Segment        string
	Strategy       string
	Depth          int
	Actor          Actor
	Channel        string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Actor names who a registration was made for. IDs stay strings so call
// sites are not tied to one UUID type; sinks parse them.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

// IsZero reports whether no ID is set.
func (a Actor) IsZero() bool {
	return a.ActorID == "" && a.UserID == "" && a.TenantID == ""
}

func (a Actor) trimmed() Actor {
	return Actor{
		ActorID:  strings.TrimSpace(a.ActorID),
		UserID:   strings.TrimSpace(a.UserID),
		TenantID: strings.TrimSpace(a.TenantID),
	}
}

// Data flattens the event into a single map: registration metadata first,
// then the path fields, which win on conflict.
func (e Event) Data() map[string]any {
	data := make(map[string]any, len(e.Metadata)+4)
	for key, value := range e.Metadata {
		data[key] = value
	}
	if e.Path != "" {
		data["path"] = e.Path
	}
	if e.Segment != "" {
		data["segment"] = e.Segment
	}
	if e.Strategy != "" {
		data["strategy"] = e.Strategy
	}
	if e.Depth > 0 {
		data["depth"] = e.Depth
	}
	return data
}

// Hook receives normalized lifecycle events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// HookError reports the failure of one hook in a fan out.
type HookError struct {
	Index int
	Verb  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("activity: hook %d failed on %s: %v", e.Index, e.Verb, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Hooks fans events out to zero or more hooks.
type Hooks []Hook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and hands it to every hook, each receiving its own
// copy of the metadata. Events without a verb or registration are dropped.
// Failures are joined, one *HookError per failing hook.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	normalized := NormalizeEvent(event)
	if normalized.Verb == "" || normalized.RegistrationID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		delivered := normalized
		delivered.Metadata = cloneMap(normalized.Metadata)
		if err := hook.Notify(ctx, delivered); err != nil {
			errs = append(errs, &HookError{Index: i, Verb: normalized.Verb, Err: err})
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, clones metadata and stamps a missing
// timestamp.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.TrimSpace(event.Verb)
	normalized.RegistrationID = strings.TrimSpace(event.RegistrationID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Actor = event.Actor.trimmed()
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
