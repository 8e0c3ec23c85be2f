package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rip-projects/pants-observe/graph"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]graph.Change
}

func (r *recorder) callback(changes []graph.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) last() []graph.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

var objectComparer = cmp.Comparer(func(a, b *graph.Object) bool { return a == b })
var arrayComparer = cmp.Comparer(func(a, b *graph.Array) bool { return a == b })

func TestPollerIdempotentTicks(t *testing.T) {
	p := NewPoller(WithManualTicks())
	obj := graph.NewObject()
	obj.Set("x", 1)
	rec := &recorder{}
	if _, err := p.Subscribe(obj, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	obj.Set("x", 2)
	if got := p.Tick(); got != 1 {
		t.Fatalf("first tick produced %d records, want 1", got)
	}
	if got := p.Tick(); got != 0 {
		t.Fatalf("second tick produced %d records, want 0", got)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one batch, got %d", rec.count())
	}
}

func TestPollerObjectAddThenDelete(t *testing.T) {
	p := NewPoller(WithManualTicks())
	obj := graph.NewObject()
	obj.Set("x", 1)
	rec := &recorder{}
	if _, err := p.Subscribe(obj, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	obj.Set("y", 2)
	p.Tick()
	want := []graph.Change{graph.AddChange(obj, "y")}
	if diff := cmp.Diff(want, rec.last(), objectComparer); diff != "" {
		t.Fatalf("add mismatch (-want +got):\n%s", diff)
	}

	obj.Delete("x")
	p.Tick()
	want = []graph.Change{graph.DeleteChange(obj, "x", 1)}
	if diff := cmp.Diff(want, rec.last(), objectComparer); diff != "" {
		t.Fatalf("delete mismatch (-want +got):\n%s", diff)
	}
}

func TestPollerPlainMapUpdate(t *testing.T) {
	p := NewPoller(WithManualTicks())
	m := map[string]any{"b": 1, "a": 1}
	rec := &recorder{}
	if _, err := p.Subscribe(m, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	m["a"] = 2
	m["c"] = 3
	p.Tick()
	got := rec.last()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %v", got)
	}
	if got[0].Type != graph.ChangeUpdate || got[0].Name != "a" || got[0].OldValue != 1 {
		t.Fatalf("unexpected first record %v", got[0])
	}
	if got[1].Type != graph.ChangeAdd || got[1].Name != "c" {
		t.Fatalf("unexpected second record %v", got[1])
	}
}

func TestPollerArrayPush(t *testing.T) {
	p := NewPoller(WithManualTicks())
	arr := graph.NewArray(1, 2, 3)
	rec := &recorder{}
	if _, err := p.Subscribe(arr, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	arr.Push(4)
	p.Tick()
	want := []graph.Change{graph.SpliceChange(arr, 3, []any{}, 1)}
	if diff := cmp.Diff(want, rec.last(), arrayComparer); diff != "" {
		t.Fatalf("splice mismatch (-want +got):\n%s", diff)
	}
}

func TestPollerArrayDiffReportsFirstDifference(t *testing.T) {
	p := NewPoller(WithManualTicks())
	arr := graph.NewArray("a", "b", "c", "d")
	rec := &recorder{}
	if _, err := p.Subscribe(arr, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	arr.SetAt(1, "B")
	arr.Pop()
	arr.Pop()
	p.Tick()
	got := rec.last()
	if len(got) != 1 {
		t.Fatalf("expected one splice, got %v", got)
	}
	if got[0].Index != 1 || got[0].AddedCount != 0 {
		t.Fatalf("unexpected splice %v", got[0])
	}
	if diff := cmp.Diff([]any{"c", "d"}, got[0].Removed); diff != "" {
		t.Fatalf("removed mismatch (-want +got):\n%s", diff)
	}
}

func TestPollerNestedReplacementIsOneUpdate(t *testing.T) {
	p := NewPoller(WithManualTicks())
	inner := graph.NewObject()
	obj := graph.NewObject()
	obj.Set("inner", inner)
	rec := &recorder{}
	if _, err := p.Subscribe(obj, rec.callback); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	inner.Set("deep", true)
	if p.Tick() != 0 {
		t.Fatalf("nested mutation must not be reported on the parent")
	}
	obj.Set("inner", graph.NewObject())
	p.Tick()
	got := rec.last()
	if len(got) != 1 || got[0].Type != graph.ChangeUpdate || got[0].OldValue != inner {
		t.Fatalf("expected one update carrying the old object, got %v", got)
	}
}

func TestPollerRejectsValuesWithoutIdentity(t *testing.T) {
	p := NewPoller(WithManualTicks())
	_, err := p.Subscribe([]any{1}, func([]graph.Change) {})
	if !errors.Is(err, ErrNotObservable) {
		t.Fatalf("expected ErrNotObservable, got %v", err)
	}
	if _, err := p.Subscribe(graph.NewObject(), nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
}

func TestPollerDisconnectDuringSweep(t *testing.T) {
	p := NewPoller(WithManualTicks())
	first, second, third := graph.NewObject(), graph.NewObject(), graph.NewObject()

	var delivered []string
	var secondID SubscriptionID
	firstID, _ := p.Subscribe(first, func([]graph.Change) {
		delivered = append(delivered, "first")
		p.Unsubscribe(second, secondID)
	})
	secondID, _ = p.Subscribe(second, func([]graph.Change) {
		delivered = append(delivered, "second")
	})
	var thirdID SubscriptionID
	thirdID, _ = p.Subscribe(third, func([]graph.Change) {
		delivered = append(delivered, "third")
		p.Unsubscribe(third, thirdID)
	})

	first.Set("k", 1)
	second.Set("k", 1)
	third.Set("k", 1)
	p.Tick()

	if diff := cmp.Diff([]string{"first", "third"}, delivered); diff != "" {
		t.Fatalf("delivery mismatch (-want +got):\n%s", diff)
	}
	if p.Len() != 1 {
		t.Fatalf("expected only the first object to remain, got %d", p.Len())
	}
	if !p.Unsubscribe(first, firstID) {
		t.Fatalf("expected first subscription to be removable")
	}
}

func TestPollerUnsubscribeDuringDeliverySkipsLaterSubscribers(t *testing.T) {
	p := NewPoller(WithManualTicks())
	obj := graph.NewObject()
	calls := 0
	var laterID SubscriptionID
	p.Subscribe(obj, func([]graph.Change) {
		calls++
		p.Unsubscribe(obj, laterID)
	})
	laterID, _ = p.Subscribe(obj, func([]graph.Change) {
		t.Fatalf("removed subscriber must not be called")
	})
	obj.Set("k", 1)
	p.Tick()
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestPollerScheduleStopsAndRestarts(t *testing.T) {
	p := NewPoller(WithInterval(time.Hour))
	defer p.Close()
	if p.Running() {
		t.Fatalf("schedule must be lazy")
	}
	obj := graph.NewObject()
	id, err := p.Subscribe(obj, func([]graph.Change) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !p.Running() {
		t.Fatalf("expected schedule after first subscription")
	}
	p.Unsubscribe(obj, id)
	if p.Running() {
		t.Fatalf("expected schedule to stop once empty")
	}
	if _, err := p.Subscribe(obj, func([]graph.Change) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !p.Running() {
		t.Fatalf("expected schedule to restart")
	}
}

func TestPollerTimerDelivers(t *testing.T) {
	p := NewPoller(WithInterval(5 * time.Millisecond))
	defer p.Close()
	obj := graph.NewObject()
	got := make(chan []graph.Change, 1)
	if _, err := p.Subscribe(obj, func(changes []graph.Change) {
		select {
		case got <- changes:
		default:
		}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	p.Update(func() { obj.Set("x", 1) })

	select {
	case changes := <-got:
		if len(changes) != 1 || changes[0].Name != "x" {
			t.Fatalf("unexpected changes %v", changes)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for sweep")
	}
}

func TestPollerSharedShadow(t *testing.T) {
	p := NewPoller(WithManualTicks())
	obj := graph.NewObject()
	a, b := &recorder{}, &recorder{}
	p.Subscribe(obj, a.callback)
	obj.Set("x", 1)
	p.Subscribe(obj, b.callback)
	p.Tick()
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("both subscribers should see the change made before the second subscription")
	}
}

func TestPollerNotifierAndStats(t *testing.T) {
	var events []LogEvent
	p := NewPoller(WithManualTicks(), WithLogger(LoggerFunc(func(e LogEvent) {
		events = append(events, e)
	})))
	obj := graph.NewObject()
	rec := &recorder{}
	p.Subscribe(obj, rec.callback)

	p.Notifier(obj).Notify(graph.AddChange(obj, "manual"))
	if rec.count() != 1 || rec.last()[0].Name != "manual" {
		t.Fatalf("expected manual record delivery")
	}
	var nilNotifier *ObjectNotifier
	nilNotifier.Notify(graph.AddChange(obj, "x"))
	if p.Notifier([]any{}) != nil {
		t.Fatalf("values without identity have no notifier")
	}

	obj.Set("a", 1)
	p.Tick()
	stats := p.Stats()
	if stats.Sweeps != 1 || stats.Batches != 2 || stats.Records != 2 || stats.Objects != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(events) != 1 || events[0].Op != "sweep" || events[0].Records != 1 {
		t.Fatalf("unexpected log events %+v", events)
	}
}

func TestPollerClose(t *testing.T) {
	p := NewPoller(WithInterval(time.Hour))
	obj := graph.NewObject()
	p.Subscribe(obj, func([]graph.Change) {})
	p.Close()
	if p.Len() != 0 || p.Running() {
		t.Fatalf("close should clear registry and stop schedule")
	}
	p.Subscribe(obj, func([]graph.Change) {})
	if p.Running() {
		t.Fatalf("closed poller must not reschedule")
	}
}
