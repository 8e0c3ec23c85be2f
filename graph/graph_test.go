package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKindOf(t *testing.T) {
	var nilObject *Object
	tests := []struct {
		name  string
		value any
		want  Kind
	}{
		{name: "object", value: NewObject(), want: KindMapping},
		{name: "map", value: map[string]any{}, want: KindMapping},
		{name: "array", value: NewArray(), want: KindSequence},
		{name: "slice", value: []any{}, want: KindSequence},
		{name: "nil object", value: nilObject, want: KindScalar},
		{name: "nil", value: nil, want: KindScalar},
		{name: "string", value: "x", want: KindScalar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.value); got != tt.want {
				t.Fatalf("KindOf(%v) = %s, want %s", tt.value, got, tt.want)
			}
		})
	}
}

func TestIdentityUsesReference(t *testing.T) {
	a, b := NewObject(), NewObject()
	idA, ok := Identity(a)
	if !ok {
		t.Fatalf("expected object to have identity")
	}
	idA2, _ := Identity(a)
	idB, _ := Identity(b)
	if idA != idA2 {
		t.Fatalf("expected stable identity")
	}
	if idA == idB {
		t.Fatalf("expected distinct objects to have distinct identity")
	}

	m := map[string]any{"x": 1}
	idM, ok := Identity(m)
	if !ok {
		t.Fatalf("expected map identity")
	}
	m["y"] = 2
	if again, _ := Identity(m); again != idM {
		t.Fatalf("map identity should survive mutation")
	}
	if _, ok := Identity([]any{1}); ok {
		t.Fatalf("slices must not have identity")
	}
}

func TestSame(t *testing.T) {
	obj := NewObject()
	m := map[string]any{}
	s := []any{1, 2}
	if !Same(obj, obj) || Same(obj, NewObject()) {
		t.Fatalf("objects compare by reference")
	}
	if !Same(m, m) || Same(m, map[string]any{}) {
		t.Fatalf("maps compare by reference")
	}
	if !Same(s, s) || Same(s, s[:1]) {
		t.Fatalf("slices compare by header")
	}
	if !Same(1, 1) || Same(1, int64(1)) || Same(1, 2) {
		t.Fatalf("scalars compare by value and type")
	}
	if !Same(nil, nil) || Same(nil, 0) {
		t.Fatalf("nil handling mismatch")
	}
}

func TestObjectMutationsEmitRecords(t *testing.T) {
	obj := NewObject()
	var got []Change
	id := obj.AddHook(func(changes []Change) {
		got = append(got, changes...)
	})

	obj.Set("a", 1)
	obj.Set("a", 1)
	obj.Set("a", 2)
	obj.Delete("a")
	obj.Delete("missing")

	want := []Change{
		AddChange(obj, "a"),
		UpdateChange(obj, "a", 1),
		DeleteChange(obj, "a", 2),
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b *Object) bool { return a == b })); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	if !obj.RemoveHook(id) {
		t.Fatalf("expected hook removal")
	}
	obj.Set("b", 1)
	if len(got) != 3 {
		t.Fatalf("removed hook should not fire, got %d records", len(got))
	}
}

func TestObjectKeepsInsertionOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("z", 1)
	obj.Set("a", 2)
	obj.Set("m", 3)
	obj.Delete("a")
	obj.Set("a", 4)
	if diff := cmp.Diff([]string{"z", "m", "a"}, obj.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestArraySplices(t *testing.T) {
	arr := NewArray(1, 2, 3)
	var got []Change
	arr.AddHook(func(changes []Change) { got = append(got, changes...) })

	arr.Push(4)
	arr.SetAt(0, 10)
	arr.Pop()
	arr.Splice(1, 1, "x", "y")

	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %d: %v", len(got), got)
	}
	if got[0].Type != ChangeSplice || got[0].Index != 3 || got[0].AddedCount != 1 {
		t.Fatalf("unexpected push record: %v", got[0])
	}
	if got[1].Type != ChangeUpdate || got[1].Name != "0" || got[1].OldValue != 1 {
		t.Fatalf("unexpected set record: %v", got[1])
	}
	if got[2].Type != ChangeSplice || got[2].Index != 3 || len(got[2].Removed) != 1 || got[2].Removed[0] != 4 {
		t.Fatalf("unexpected pop record: %v", got[2])
	}
	if got[3].Index != 1 || got[3].AddedCount != 2 || got[3].Removed[0] != 2 {
		t.Fatalf("unexpected splice record: %v", got[3])
	}
	if diff := cmp.Diff([]any{10, "x", "y", 3}, arr.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestHookRemovedDuringEmitIsSkipped(t *testing.T) {
	obj := NewObject()
	var second HookID
	calls := 0
	obj.AddHook(func([]Change) {
		calls++
		obj.RemoveHook(second)
	})
	second = obj.AddHook(func([]Change) { calls += 10 })

	obj.Set("a", 1)
	if calls != 1 {
		t.Fatalf("expected removed hook to be skipped, calls=%d", calls)
	}
}

func TestLookupAndAssign(t *testing.T) {
	arr := NewArray("a", "b")
	slice := []any{"x"}
	m := map[string]any{"k": 1}

	if v, ok := Lookup(arr, "1"); !ok || v != "b" {
		t.Fatalf("array lookup: %v %v", v, ok)
	}
	if _, ok := Lookup(arr, "01"); ok {
		t.Fatalf("non-canonical index must not resolve")
	}
	if v, ok := Lookup(slice, "0"); !ok || v != "x" {
		t.Fatalf("slice lookup: %v %v", v, ok)
	}
	if v, ok := Lookup(m, "k"); !ok || v != 1 {
		t.Fatalf("map lookup: %v %v", v, ok)
	}
	if _, ok := Lookup(5, "k"); ok {
		t.Fatalf("scalar lookup must fail")
	}

	if !Assign(arr, "2", "c") || arr.Len() != 3 {
		t.Fatalf("assign at len should append")
	}
	if Assign(slice, "1", "y") {
		t.Fatalf("slices cannot grow")
	}
	if !Assign(m, "n", 2) || m["n"] != 2 {
		t.Fatalf("map assign failed")
	}
}

func TestParseIndex(t *testing.T) {
	tests := map[string]bool{
		"0":          true,
		"42":         true,
		"4294967295": true,
		"4294967296": false,
		"01":         false,
		"":           false,
		"-1":         false,
		"a":          false,
	}
	for input, want := range tests {
		if _, got := ParseIndex(input); got != want {
			t.Fatalf("ParseIndex(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestExportBreaksCycles(t *testing.T) {
	root := NewObject()
	child := NewObject()
	child.Set("parent", root)
	child.Set("n", 1)
	root.Set("child", child)
	root.Set("list", NewArray("x", child))

	got := Export(root)
	want := map[string]any{
		"child": map[string]any{"parent": nil, "n": 1},
		"list":  []any{"x", map[string]any{"parent": nil, "n": 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("export mismatch (-want +got):\n%s", diff)
	}
}
