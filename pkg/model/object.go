package model

import (
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/ordered"
)

// Properties maps property keys to values in insertion order.
type Properties = ordered.Map[Value]

// Object is a node of a model tree. An object that extends a class is an
// instance of that class: its composition belongs to the class template,
// so children and relations cannot be added to it directly.
type Object struct {
	extends    string
	objects    ordered.Map[*Object]
	relations  ordered.Map[*Relation]
	properties Properties
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{}
}

// Extends returns the class this object extends, or "".
func (o *Object) Extends() string {
	return o.extends
}

// SetExtends marks the object as an instance of class name.
func (o *Object) SetExtends(name string) error {
	if name == "" {
		return NewInvalidArgumentError("class name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("set_extends")
	}
	o.extends = name
	return nil
}

// ClearExtends removes the class reference.
func (o *Object) ClearExtends() {
	o.extends = ""
}

// AddObject adds child under name. A child already stored under name is
// replaced.
func (o *Object) AddObject(name string, child *Object) error {
	if o.extends != "" {
		return NewInvalidStateError("cannot add an object to an instance of "+o.extends, nil).
			WithCode(ErrCodeExtendsRestricted).
			WithName(name).
			WithOperation("add_object")
	}
	if name == "" {
		return NewInvalidArgumentError("object name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("add_object")
	}
	if child == nil {
		return NewInvalidArgumentError("object must not be nil", nil).
			WithName(name).
			WithOperation("add_object")
	}
	if child == o || child.contains(o) {
		return NewInvalidArgumentError("object would contain itself", nil).
			WithCode(ErrCodeContainmentCycle).
			WithName(name).
			WithOperation("add_object")
	}
	if o.objects.Has(name) {
		log.Debug().Str("name", name).Msg("Replacing existing object")
	}
	o.objects.Set(name, child)
	return nil
}

// RemoveObject removes the child stored under name.
func (o *Object) RemoveObject(name string) error {
	if name == "" {
		return NewInvalidArgumentError("object name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("remove_object")
	}
	if !o.objects.Delete(name) {
		return NewNotFoundError("object not found", nil).
			WithName(name).
			WithOperation("remove_object")
	}
	return nil
}

// AddRelation adds rel under name and makes o its owner. A relation
// already stored under name is replaced and detached.
func (o *Object) AddRelation(name string, rel *Relation) error {
	if o.extends != "" {
		return NewInvalidStateError("cannot add a relation to an instance of "+o.extends, nil).
			WithCode(ErrCodeExtendsRestricted).
			WithName(name).
			WithOperation("add_relation")
	}
	if name == "" {
		return NewInvalidArgumentError("relation name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("add_relation")
	}
	if rel == nil {
		return NewInvalidArgumentError("relation must not be nil", nil).
			WithName(name).
			WithOperation("add_relation")
	}
	if prev, ok := o.relations.Get(name); ok && prev != rel {
		log.Debug().Str("name", name).Msg("Replacing existing relation")
		prev.owner = nil
	}
	o.relations.Set(name, rel)
	rel.owner = o
	return nil
}

// RemoveRelation removes the relation stored under name and detaches it.
func (o *Object) RemoveRelation(name string) error {
	if name == "" {
		return NewInvalidArgumentError("relation name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("remove_relation")
	}
	rel, ok := o.relations.Get(name)
	if !ok {
		return NewNotFoundError("relation not found", nil).
			WithName(name).
			WithOperation("remove_relation")
	}
	o.relations.Delete(name)
	rel.owner = nil
	return nil
}

// AddProperty sets a property. Properties are write-once: an existing
// key must be removed before it can be set again.
func (o *Object) AddProperty(key, value string) error {
	return addProperty(&o.properties, key, value)
}

// SetProperty stores v under key, replacing any existing value. It is
// used when overlaying class properties.
func (o *Object) SetProperty(key string, v Value) error {
	return setProperty(&o.properties, key, v)
}

// RemoveProperty removes the property stored under key.
func (o *Object) RemoveProperty(key string) error {
	return removeProperty(&o.properties, key)
}

// Property returns the value stored under key.
func (o *Object) Property(key string) (Value, bool) {
	return o.properties.Get(key)
}

// Properties returns a copy of the properties.
func (o *Object) Properties() *Properties {
	return o.properties.Clone(nil)
}

// PropertyKeys returns the property keys in insertion order.
func (o *Object) PropertyKeys() []string {
	return o.properties.Keys()
}

// Object returns the direct child named name.
func (o *Object) Object(name string) (*Object, bool) {
	return o.objects.Get(name)
}

// Objects returns the names of the direct children in insertion order.
func (o *Object) Objects() []string {
	return o.objects.Keys()
}

// Relation returns the relation named name.
func (o *Object) Relation(name string) (*Relation, bool) {
	return o.relations.Get(name)
}

// Relations returns the names of the relations in insertion order.
func (o *Object) Relations() []string {
	return o.relations.Keys()
}

// NumObjects returns the number of direct children.
func (o *Object) NumObjects() int {
	return o.objects.Len()
}

// NumRelations returns the number of relations.
func (o *Object) NumRelations() int {
	return o.relations.Len()
}

// NumProperties returns the number of properties.
func (o *Object) NumProperties() int {
	return o.properties.Len()
}

// LookupObjectParent returns the first object, in depth-first pre-order
// starting at o, whose direct children contain name. When the same name
// occurs in several branches the match depends on that traversal order
// and callers should not rely on which one is returned.
func (o *Object) LookupObjectParent(name string) *Object {
	if name == "" {
		return nil
	}
	var found *Object
	o.Walk(func(_ string, obj *Object) bool {
		if obj.objects.Has(name) {
			found = obj
			return false
		}
		return true
	})
	return found
}

// LookupObject returns the first object named name below o.
func (o *Object) LookupObject(name string) *Object {
	parent := o.LookupObjectParent(name)
	if parent == nil {
		return nil
	}
	child, _ := parent.objects.Get(name)
	return child
}

// Walk visits o and every descendant in depth-first pre-order, children
// in insertion order. The root is visited with name "". Returning false
// stops the walk.
func (o *Object) Walk(fn func(name string, obj *Object) bool) {
	type frame struct {
		name string
		obj  *Object
	}
	stack := []frame{{obj: o}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(top.name, top.obj) {
			return
		}
		keys := top.obj.objects.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			child, _ := top.obj.objects.Get(keys[i])
			stack = append(stack, frame{name: keys[i], obj: child})
		}
	}
}

// ObjectNames returns the set of names of every object below o. The
// root's own name is not known to it and is not included.
func (o *Object) ObjectNames() map[string]struct{} {
	names := make(map[string]struct{})
	o.Walk(func(name string, obj *Object) bool {
		if obj != o {
			names[name] = struct{}{}
		}
		return true
	})
	return names
}

// contains reports whether target occurs below o.
func (o *Object) contains(target *Object) bool {
	found := false
	o.Walk(func(_ string, obj *Object) bool {
		if obj != o && obj == target {
			found = true
			return false
		}
		return true
	})
	return found
}

// Clone returns a deep copy of o. Shared subtrees are copied once per
// occurrence and relations are rebound to the copied owners.
func (o *Object) Clone() *Object {
	type pending struct {
		src *Object
		dst *Object
	}
	root := &Object{}
	stack := []pending{{src: o, dst: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		top.dst.extends = top.src.extends
		top.src.properties.Range(func(k string, v Value) bool {
			top.dst.properties.Set(k, v)
			return true
		})
		top.src.relations.Range(func(name string, rel *Relation) bool {
			c := rel.Clone()
			c.owner = top.dst
			top.dst.relations.Set(name, c)
			return true
		})
		top.src.objects.Range(func(name string, child *Object) bool {
			c := &Object{}
			top.dst.objects.Set(name, c)
			stack = append(stack, pending{src: child, dst: c})
			return true
		})
	}
	return root
}

// Equal reports whether o and other hold the same values: class,
// properties, children and relations, compared in order.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	type pair struct{ a, b *Object }
	stack := []pair{{o, other}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a, b := top.a, top.b

		if a.extends != b.extends || !propertiesEqual(&a.properties, &b.properties) {
			return false
		}
		if !sameKeys(a.relations.Keys(), b.relations.Keys()) || !sameKeys(a.objects.Keys(), b.objects.Keys()) {
			return false
		}
		for _, name := range a.relations.Keys() {
			ra, _ := a.relations.Get(name)
			rb, _ := b.relations.Get(name)
			if !ra.Equal(rb) {
				return false
			}
		}
		for _, name := range a.objects.Keys() {
			ca, _ := a.objects.Get(name)
			cb, _ := b.objects.Get(name)
			stack = append(stack, pair{ca, cb})
		}
	}
	return true
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func propertiesEqual(a, b *Properties) bool {
	if !sameKeys(a.Keys(), b.Keys()) {
		return false
	}
	equal := true
	a.Range(func(k string, v Value) bool {
		w, _ := b.Get(k)
		if v != w {
			equal = false
		}
		return equal
	})
	return equal
}

func addProperty(props *Properties, key, value string) error {
	if key == "" {
		return NewInvalidArgumentError("property key must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("add_property")
	}
	if props.Has(key) {
		return NewAlreadyExistsError("property already set, remove it first", nil).
			WithCode(ErrCodeDuplicateProperty).
			WithName(key).
			WithOperation("add_property")
	}
	props.Set(key, String(value))
	return nil
}

func setProperty(props *Properties, key string, v Value) error {
	if key == "" {
		return NewInvalidArgumentError("property key must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("set_property")
	}
	props.Set(key, v)
	return nil
}

func removeProperty(props *Properties, key string) error {
	if key == "" {
		return NewInvalidArgumentError("property key must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("remove_property")
	}
	if !props.Delete(key) {
		return NewNotFoundError("property not found", nil).
			WithName(key).
			WithOperation("remove_property")
	}
	return nil
}
