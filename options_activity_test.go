package observe

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rip-projects/pants-observe/graph"
	"github.com/rip-projects/pants-observe/notify"
	"github.com/rip-projects/pants-observe/pkg/activity"
)

func TestWithActivityHooksClonesAndFiltersNil(t *testing.T) {
	hook := activity.HookFunc(func(context.Context, activity.Event) error { return nil })

	c := New(WithManualTicks(), WithActivityHooks(activity.Hooks{nil, hook}))
	defer c.Close()
	hooks := c.ActivityHooks()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}

	// Mutate returned slice and ensure original configuration is unaffected.
	hooks[0] = nil
	again := c.ActivityHooks()
	if len(again) != 1 || again[0] == nil {
		t.Fatalf("expected cloned hooks unaffected by mutation, got %+v", again)
	}
}

func TestActivityHooksDefaultNil(t *testing.T) {
	c := New(WithManualTicks())
	defer c.Close()
	if hooks := c.ActivityHooks(); hooks != nil {
		t.Fatalf("expected nil hooks by default, got %+v", hooks)
	}
}

func TestLifecycleEventsReachHooks(t *testing.T) {
	capture := &activity.CaptureHook{}
	c := New(
		WithStrategy(notify.StrategyNative),
		WithActivityHooks(activity.Hooks{capture}),
		WithActivityChannel("audit"),
	)
	defer c.Close()

	actor := activity.Actor{ActorID: "a-1", TenantID: "t-1"}
	root := graph.NewObject()
	h, err := c.Observe(root, "a.b", func([]graph.Change) {},
		WithMetadata(map[string]any{"tenant": "t1"}),
		WithActor(actor),
	)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	root.Set("a", graph.NewObject())
	h.Disconnect()

	want := []string{
		activity.VerbConnected,
		activity.VerbRewired,
		activity.VerbRewired,
		activity.VerbDisconnected,
	}
	if diff := cmp.Diff(want, capture.Verbs()); diff != "" {
		t.Fatalf("unexpected verbs (-want +got):\n%s", diff)
	}

	events := capture.Events()
	for _, event := range events {
		if event.RegistrationID != h.ID() || event.Channel != "audit" || event.Path != "a.b" {
			t.Fatalf("unexpected event identity %+v", event)
		}
		if event.Actor != actor {
			t.Fatalf("expected registration actor, got %+v", event.Actor)
		}
		if event.Strategy != notify.StrategyNative || event.Metadata["tenant"] != "t1" {
			t.Fatalf("unexpected event details %+v", event)
		}
		if event.OccurredAt.IsZero() {
			t.Fatalf("expected a timestamp")
		}
	}

	rewired := events[2]
	if rewired.Segment != "b" || rewired.Depth != 1 {
		t.Fatalf("unexpected rewire fields %+v", rewired)
	}
	if events[0].Segment != "" || events[0].Depth != 0 {
		t.Fatalf("connected events carry no segment, got %+v", events[0])
	}
}

func TestActivityHookFailureIsLogged(t *testing.T) {
	logs := &logCapture{}
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("sink down")
	})
	c := New(WithManualTicks(), WithLogger(logs), WithActivityHooks(activity.Hooks{failing}))
	defer c.Close()

	rec := &recorder{}
	if _, err := c.Observe(graph.NewObject(), "x", rec.callback); err != nil {
		t.Fatalf("hook failures must not fail Observe: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected priming delivery despite hook failure")
	}
	failures := logs.ops(OpActivity)
	if len(failures) != 1 {
		t.Fatalf("expected one activity failure log, got %d", len(failures))
	}
	var hookErr *activity.HookError
	if !errors.As(failures[0].Err, &hookErr) || hookErr.Verb != activity.VerbConnected {
		t.Fatalf("expected hook error for the connected event, got %v", failures[0].Err)
	}
	if failures[0].Path != "x" {
		t.Fatalf("expected path on the failure log, got %q", failures[0].Path)
	}
}
