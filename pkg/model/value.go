package model

// Value is a property value: either a text value or the object marker
// that flattening records for a child object that existed at a path.
// The marker is distinct from every string, including "".
type Value struct {
	text   string
	marker bool
}

// String returns a text value.
func String(s string) Value {
	return Value{text: s}
}

// ObjectMarker returns the object marker.
func ObjectMarker() Value {
	return Value{marker: true}
}

// IsMarker reports whether v is the object marker.
func (v Value) IsMarker() bool {
	return v.marker
}

// Text returns the text of a text value and "" for the marker.
func (v Value) Text() string {
	return v.text
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.marker {
		return "<object>"
	}
	return v.text
}

func (v Value) pointer() *string {
	if v.marker {
		return nil
	}
	s := v.text
	return &s
}

func valueFromPointer(p *string) Value {
	if p == nil {
		return ObjectMarker()
	}
	return String(*p)
}
