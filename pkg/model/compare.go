package model

import (
	"fmt"
	"sort"
	"strings"
)

// DiffEntry is one flattened key reported by a comparison.
type DiffEntry struct {
	// Key is the flattened property key.
	Key string `json:"key"`

	// Object is true when the key records the presence of an object
	// rather than a property value.
	Object bool `json:"object"`

	// Self and Other hold the values on each side. Only the side(s)
	// carrying the key are meaningful.
	Self  Value `json:"-"`
	Other Value `json:"-"`
}

// Diff is the result of comparing two flattened objects.
type Diff struct {
	// OnlyInOther lists keys missing from the receiver.
	OnlyInOther []DiffEntry `json:"only_in_other"`
	// OnlyInSelf lists keys missing from the compared object.
	OnlyInSelf []DiffEntry `json:"only_in_self"`
	// Differing lists keys present on both sides with different values.
	Differing []DiffEntry `json:"differing"`
}

// Empty reports whether both sides flattened to the same properties.
func (d *Diff) Empty() bool {
	return len(d.OnlyInOther) == 0 && len(d.OnlyInSelf) == 0 && len(d.Differing) == 0
}

// String renders the diff as plain text, one entry per line.
func (d *Diff) String() string {
	var b strings.Builder
	section := func(title string, entries []DiffEntry, side func(DiffEntry) string) {
		fmt.Fprintf(&b, "%s:\n", title)
		for _, e := range entries {
			if e.Object {
				fmt.Fprintf(&b, "[Object] %s\n", e.Key)
				continue
			}
			fmt.Fprintf(&b, "[Property] %s = %s\n", e.Key, side(e))
		}
	}
	section("Items not in self", d.OnlyInOther, func(e DiffEntry) string { return e.Other.String() })
	section("Items not in other", d.OnlyInSelf, func(e DiffEntry) string { return e.Self.String() })
	section("Items with different values", d.Differing, func(e DiffEntry) string {
		return e.Self.String() + " -> " + e.Other.String()
	})
	return b.String()
}

// Compare flattens o and other and reports how their properties differ.
func (o *Object) Compare(other *Object) *Diff {
	return diffProperties(o.Flatten(), other.Flatten())
}

// CompareWithExtends is Compare over FlattenWithExtends, so that inherited
// properties take part in the comparison.
func (o *Object) CompareWithExtends(other *Object, resolver TemplateResolver) (*Diff, error) {
	a, err := o.FlattenWithExtends(resolver)
	if err != nil {
		return nil, err
	}
	b, err := other.FlattenWithExtends(resolver)
	if err != nil {
		return nil, err
	}
	return diffProperties(a, b), nil
}

func diffProperties(self, other *Object) *Diff {
	diff := &Diff{}
	self.properties.Range(func(k string, v Value) bool {
		w, ok := other.properties.Get(k)
		switch {
		case !ok:
			diff.OnlyInSelf = append(diff.OnlyInSelf, DiffEntry{Key: k, Object: v.IsMarker(), Self: v})
		case v != w:
			diff.Differing = append(diff.Differing, DiffEntry{
				Key:    k,
				Object: v.IsMarker() || w.IsMarker(),
				Self:   v,
				Other:  w,
			})
		}
		return true
	})
	other.properties.Range(func(k string, w Value) bool {
		if !self.properties.Has(k) {
			diff.OnlyInOther = append(diff.OnlyInOther, DiffEntry{Key: k, Object: w.IsMarker(), Other: w})
		}
		return true
	})
	for _, entries := range [][]DiffEntry{diff.OnlyInOther, diff.OnlyInSelf, diff.Differing} {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	}
	return diff
}
