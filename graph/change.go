package graph

import (
	"fmt"
	"strings"
)

// ChangeType tags the shape of a Change.
type ChangeType string

const (
	// ChangeAdd reports a key that became present.
	ChangeAdd ChangeType = "add"
	// ChangeUpdate reports a key whose value was replaced.
	ChangeUpdate ChangeType = "update"
	// ChangeDelete reports a key that was removed.
	ChangeDelete ChangeType = "delete"
	// ChangeSplice reports a sequence whose elements were inserted or removed.
	ChangeSplice ChangeType = "splice"
)

// Change is one normalized mutation record. Add, update and delete records
// use Name and OldValue; splice records use Index, Removed and AddedCount.
type Change struct {
	Type     ChangeType
	Object   any
	Name     string
	OldValue any
	// HasOld distinguishes a nil OldValue from an absent one.
	HasOld bool

	Index      int
	Removed    []any
	AddedCount int
}

// IsSplice reports whether c describes a sequence splice.
func (c Change) IsSplice() bool {
	return c.Type == ChangeSplice
}

// Key returns the name used when deduplicating records within a batch.
// Splice records carry no name and all share the empty key.
func (c Change) Key() string {
	if c.IsSplice() {
		return ""
	}
	return c.Name
}

func (c Change) String() string {
	var b strings.Builder
	b.WriteString(string(c.Type))
	if c.IsSplice() {
		fmt.Fprintf(&b, "(index=%d removed=%d added=%d)", c.Index, len(c.Removed), c.AddedCount)
		return b.String()
	}
	fmt.Fprintf(&b, "(%q", c.Name)
	if c.HasOld {
		fmt.Fprintf(&b, " old=%v", c.OldValue)
	}
	b.WriteByte(')')
	return b.String()
}

// AddChange builds an add record.
func AddChange(object any, name string) Change {
	return Change{Type: ChangeAdd, Object: object, Name: name}
}

// UpdateChange builds an update record carrying the replaced value.
func UpdateChange(object any, name string, old any) Change {
	return Change{Type: ChangeUpdate, Object: object, Name: name, OldValue: old, HasOld: true}
}

// DeleteChange builds a delete record carrying the removed value.
func DeleteChange(object any, name string, old any) Change {
	return Change{Type: ChangeDelete, Object: object, Name: name, OldValue: old, HasOld: true}
}

// SpliceChange builds a splice record.
func SpliceChange(object any, index int, removed []any, addedCount int) Change {
	return Change{Type: ChangeSplice, Object: object, Index: index, Removed: removed, AddedCount: addedCount}
}
