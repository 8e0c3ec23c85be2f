package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rip-projects/pants-observe/pkg/activity"
	"github.com/rip-projects/pants-observe/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsObservationEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	tenantID := uuid.New()
	registrationID := uuid.New().String()

	event := activity.BuildRewiredEvent(activity.ObservationEventInput{
		RegistrationID: registrationID,
		Path:           "settings.theme.color",
		Segment:        "color",
		Strategy:       "poll",
		Depth:          2,
		Actor: activity.Actor{
			ActorID:  actorID.String(),
			UserID:   userID.String(),
			TenantID: tenantID.String(),
		},
		Metadata:   map[string]any{"source": "settings"},
		OccurredAt: now,
	})
	event.Channel = "observe"

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, record.ActorID)
	}
	if record.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, record.UserID)
	}
	if record.TenantID != tenantID {
		t.Fatalf("expected tenant %s got %s", tenantID, record.TenantID)
	}
	if record.Verb != activity.VerbRewired || record.ObjectType != activity.ObservationObjectType || record.ObjectID != registrationID {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "observe" {
		t.Fatalf("expected channel observe got %q", record.Channel)
	}
	if record.OccurredAt != now {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	want := map[string]any{
		"registration_id": registrationID,
		"path":            "settings.theme.color",
		"segment":         "color",
		"strategy":        "poll",
		"depth":           2,
		"source":          "settings",
	}
	if diff := cmp.Diff(want, record.Data); diff != "" {
		t.Fatalf("unexpected record data (-want +got):\n%s", diff)
	}
}

func TestHookNotifyIgnoresMalformedActorIDs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.BuildConnectedEvent(activity.ObservationEventInput{
		RegistrationID: "reg-1",
		Actor:          activity.Actor{ActorID: "not-a-uuid"},
	}))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil actor, got %s", sink.records[0].ActorID)
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyFiltersVerbs(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbConnected, activity.VerbDisconnected}}

	input := activity.ObservationEventInput{RegistrationID: "reg-1", Path: "a.b"}
	for _, event := range []activity.Event{
		activity.BuildConnectedEvent(input),
		activity.BuildRewiredEvent(input),
		activity.BuildDisconnectedEvent(input),
	} {
		if err := hook.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected rewired event skipped, got %d records", len(sink.records))
	}
	if sink.records[1].Verb != activity.VerbDisconnected {
		t.Fatalf("unexpected verb %q", sink.records[1].Verb)
	}
}

func TestHookNotifyDefaultsTimestamp(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.BuildConnectedEvent(activity.ObservationEventInput{
		RegistrationID: "1",
	}))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}
