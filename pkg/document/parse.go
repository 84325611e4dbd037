package document

import (
	"fmt"
	"sort"

	"github.com/rauzy/rauzy/pkg/ordered"
)

// Fields gives typed access to the members of a generic mapping, as
// produced by CUE decoding, Starlark conversion or encoding/json into any.
// Mappings may be ordered (*ordered.Map[any]) or plain map[string]any;
// plain maps are visited in sorted key order so results are deterministic.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields wraps a generic mapping value.
func NewFields(v any) (*Fields, error) {
	switch m := v.(type) {
	case *ordered.Map[any]:
		f := &Fields{values: make(map[string]any, m.Len())}
		m.Range(func(k string, val any) bool {
			f.keys = append(f.keys, k)
			f.values[k] = val
			return true
		})
		return f, nil
	case map[string]any:
		f := &Fields{values: m}
		for k := range m {
			f.keys = append(f.keys, k)
		}
		sort.Strings(f.keys)
		return f, nil
	case nil:
		return &Fields{values: map[string]any{}}, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}

// Keys returns the member names in visiting order.
func (f *Fields) Keys() []string {
	return f.keys
}

// Value returns the raw member value. Absent members and empty strings are
// reported as missing.
func (f *Fields) Value(key string) (any, bool) {
	v, ok := f.values[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

// String returns a string member.
func (f *Fields) String(key string) (string, bool, error) {
	v, ok := f.Value(key)
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("field %q must be a string, got %T", key, v)
	}
	return s, true, nil
}

// Bool returns a boolean member.
func (f *Fields) Bool(key string) (bool, bool, error) {
	v, ok := f.Value(key)
	if !ok {
		return false, false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, false, fmt.Errorf("field %q must be a boolean, got %T", key, v)
	}
	return b, true, nil
}

// Strings returns a list-of-strings member.
func (f *Fields) Strings(key string) ([]string, error) {
	v, ok := f.Value(key)
	if !ok {
		return nil, nil
	}
	list, isList := v.([]any)
	if !isList {
		if strs, isStrs := v.([]string); isStrs {
			return strs, nil
		}
		return nil, fmt.Errorf("field %q must be a list, got %T", key, v)
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, isString := item.(string)
		if !isString {
			return nil, fmt.Errorf("field %q[%d] must be a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// Mapping returns a nested mapping member.
func (f *Fields) Mapping(key string) (*Fields, bool, error) {
	v, ok := f.Value(key)
	if !ok {
		return nil, false, nil
	}
	nested, err := NewFields(v)
	if err != nil {
		return nil, false, fmt.Errorf("field %q: %w", key, err)
	}
	return nested, true, nil
}

// ParseObject builds an object document from a generic mapping.
func ParseObject(v any) (*Object, error) {
	f, err := NewFields(v)
	if err != nil {
		return nil, err
	}
	if err := checkNature(f, NatureObject); err != nil {
		return nil, err
	}

	doc := NewObject()
	if doc.Extends, _, err = f.String("extends"); err != nil {
		return nil, err
	}
	if doc.Library, _, err = f.String("library"); err != nil {
		return nil, err
	}
	if doc.Properties, err = parseProperties(f); err != nil {
		return nil, err
	}

	objects, ok, err := f.Mapping("objects")
	if err != nil {
		return nil, err
	}
	if ok {
		doc.Objects = ordered.NewMap[*Object]()
		for _, name := range objects.Keys() {
			child, err := ParseObject(objects.values[name])
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", name, err)
			}
			doc.Objects.Set(name, child)
		}
	}

	relations, ok, err := f.Mapping("relations")
	if err != nil {
		return nil, err
	}
	if ok {
		doc.Relations = ordered.NewMap[*Relation]()
		for _, name := range relations.Keys() {
			rel, err := ParseRelation(relations.values[name])
			if err != nil {
				return nil, fmt.Errorf("relation %q: %w", name, err)
			}
			doc.Relations.Set(name, rel)
		}
	}

	return doc, nil
}

// ParseRelation builds a relation document from a generic mapping.
func ParseRelation(v any) (*Relation, error) {
	f, err := NewFields(v)
	if err != nil {
		return nil, err
	}
	if err := checkNature(f, NatureRelation); err != nil {
		return nil, err
	}

	doc := NewRelation()
	if doc.Extends, _, err = f.String("extends"); err != nil {
		return nil, err
	}
	if doc.From, err = f.Strings("from"); err != nil {
		return nil, err
	}
	if doc.To, err = f.Strings("to"); err != nil {
		return nil, err
	}
	directional, ok, err := f.Bool("directional")
	if err != nil {
		return nil, err
	}
	if ok {
		doc.Directional = &directional
	}
	if doc.Properties, err = parseProperties(f); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseLibrary builds a library document from a generic mapping. The
// nature member is mandatory for libraries.
func ParseLibrary(v any) (*Library, error) {
	f, err := NewFields(v)
	if err != nil {
		return nil, err
	}
	nature, _, err := f.String("nature")
	if err != nil {
		return nil, err
	}
	if Nature(nature) != NatureLibrary {
		return nil, fmt.Errorf("not a library document (nature %q)", nature)
	}

	doc := NewLibrary()
	if objects, ok, err := f.Mapping("objects"); err != nil {
		return nil, err
	} else if ok {
		for _, name := range objects.Keys() {
			obj, err := ParseObject(objects.values[name])
			if err != nil {
				return nil, fmt.Errorf("object class %q: %w", name, err)
			}
			doc.Objects.Set(name, obj)
		}
	}
	if relations, ok, err := f.Mapping("relations"); err != nil {
		return nil, err
	} else if ok {
		for _, name := range relations.Keys() {
			rel, err := ParseRelation(relations.values[name])
			if err != nil {
				return nil, fmt.Errorf("relation class %q: %w", name, err)
			}
			doc.Relations.Set(name, rel)
		}
	}
	return doc, nil
}

func checkNature(f *Fields, want Nature) error {
	nature, ok, err := f.String("nature")
	if err != nil {
		return err
	}
	if ok && Nature(nature) != want {
		return fmt.Errorf("expected nature %q, got %q", want, nature)
	}
	return nil
}

// parseProperties reads the properties member. Values must be strings;
// null is kept as the object marker.
func parseProperties(f *Fields) (*Properties, error) {
	props, ok, err := f.Mapping("properties")
	if err != nil || !ok {
		return nil, err
	}
	out := ordered.NewMap[*string]()
	for _, key := range props.Keys() {
		switch v := props.values[key].(type) {
		case nil:
			out.Set(key, nil)
		case string:
			out.Set(key, StringPtr(v))
		default:
			return nil, fmt.Errorf("property %q must be a string, got %T", key, v)
		}
	}
	return out, nil
}
