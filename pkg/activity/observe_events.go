package activity

import (
	"strings"
	"time"
)

// Observation lifecycle verbs.
const (
	VerbConnected    = "observe.connected"
	VerbDisconnected = "observe.disconnected"
	VerbRewired      = "observe.rewired"
)

// ObservationObjectType is the object type sinks record events under.
const ObservationObjectType = "observation"

// ObservationEventInput is what a registration knows when one of its
// lifecycle events happens.
type ObservationEventInput struct {
	RegistrationID string
	Path           string
	// Segment is the path suffix a rewired node now watches.
	Segment    string
	Strategy   string
	Depth      int
	Actor      Actor
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildConnectedEvent constructs the event emitted when a registration starts
// watching its root.
func BuildConnectedEvent(input ObservationEventInput) Event {
	return buildObservationEvent(VerbConnected, input)
}

// BuildDisconnectedEvent constructs the event emitted when a registration is
// torn down.
func BuildDisconnectedEvent(input ObservationEventInput) Event {
	return buildObservationEvent(VerbDisconnected, input)
}

// BuildRewiredEvent constructs the event emitted when an intermediate value
// was replaced and the chain below it rebuilt.
func BuildRewiredEvent(input ObservationEventInput) Event {
	return buildObservationEvent(VerbRewired, input)
}

// buildObservationEvent falls back to the path, then to the object type,
// when the registration ID is missing.
func buildObservationEvent(verb string, input ObservationEventInput) Event {
	id := strings.TrimSpace(input.RegistrationID)
	if id == "" {
		id = strings.TrimSpace(input.Path)
	}
	if id == "" {
		id = ObservationObjectType
	}
	return Event{
		Verb:           verb,
		RegistrationID: id,
		Path:           input.Path,
		Segment:        input.Segment,
		Strategy:       input.Strategy,
		Depth:          input.Depth,
		Actor:          input.Actor.trimmed(),
		Metadata:       cloneMap(input.Metadata),
		OccurredAt:     input.OccurredAt,
	}
}
