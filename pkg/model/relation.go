package model

import (
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/ordered"
)

// EndpointState records whether an endpoint name was found in the
// owner's tree when it was last resolved.
type EndpointState int

const (
	// Unresolved endpoints name no known object: the relation was not
	// attached yet or the object does not exist (yet).
	Unresolved EndpointState = iota
	// Resolved endpoints name an object below the owner.
	Resolved
)

// String implements fmt.Stringer.
func (s EndpointState) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "unresolved"
}

// Endpoint is a weak reference from a relation to an object by name.
type Endpoint struct {
	Name  string
	State EndpointState
}

// Relation is an edge between objects of a tree, owned by one object.
// Endpoints are names resolved against the owner's subtree.
type Relation struct {
	extends     string
	from        ordered.Map[EndpointState]
	to          ordered.Map[EndpointState]
	directional *bool
	properties  Properties
	owner       *Object
}

// NewRelation creates an empty, unattached relation.
func NewRelation() *Relation {
	return &Relation{}
}

// Owner returns the object the relation is attached to, or nil.
func (r *Relation) Owner() *Object {
	return r.owner
}

// Extends returns the class this relation extends, or "".
func (r *Relation) Extends() string {
	return r.extends
}

// SetExtends marks the relation as an instance of class name.
func (r *Relation) SetExtends(name string) error {
	if name == "" {
		return NewInvalidArgumentError("class name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation("set_extends")
	}
	r.extends = name
	return nil
}

// ClearExtends removes the class reference.
func (r *Relation) ClearExtends() {
	r.extends = ""
}

// Directional returns the direction flag and whether it is set.
func (r *Relation) Directional() (bool, bool) {
	if r.directional == nil {
		return false, false
	}
	return *r.directional, true
}

// SetDirectional sets the direction flag.
func (r *Relation) SetDirectional(v bool) {
	r.directional = &v
}

// ClearDirectional unsets the direction flag.
func (r *Relation) ClearDirectional() {
	r.directional = nil
}

// AddFrom adds an origin endpoint. Resolution is best effort: a name
// that cannot be found is kept as unresolved.
func (r *Relation) AddFrom(name string) error {
	return r.addEndpoint(&r.from, name, "add_from")
}

// AddTo adds a destination endpoint. Resolution is best effort.
func (r *Relation) AddTo(name string) error {
	return r.addEndpoint(&r.to, name, "add_to")
}

// RemoveFrom removes an origin endpoint.
func (r *Relation) RemoveFrom(name string) error {
	return removeEndpoint(&r.from, name, "remove_from")
}

// RemoveTo removes a destination endpoint.
func (r *Relation) RemoveTo(name string) error {
	return removeEndpoint(&r.to, name, "remove_to")
}

// ClearEndpoints removes every endpoint.
func (r *Relation) ClearEndpoints() {
	r.from.Clear()
	r.to.Clear()
}

// FromNames returns the origin names in insertion order.
func (r *Relation) FromNames() []string {
	return r.from.Keys()
}

// ToNames returns the destination names in insertion order.
func (r *Relation) ToNames() []string {
	return r.to.Keys()
}

// From returns the origin endpoints with their resolution state.
func (r *Relation) From() []Endpoint {
	return endpoints(&r.from)
}

// To returns the destination endpoints with their resolution state.
func (r *Relation) To() []Endpoint {
	return endpoints(&r.to)
}

// Endpoints returns origin then destination endpoints.
func (r *Relation) Endpoints() []Endpoint {
	return append(r.From(), r.To()...)
}

// Resolve resolves every endpoint again against the owner's subtree and
// returns the names that are still unresolved. Endpoints naming objects
// outside that subtree, such as siblings of the owner, are resolved by
// ResolveRelations on the tree root.
func (r *Relation) Resolve() []string {
	return r.resolveEach(r.resolve)
}

// resolveWithin resolves every endpoint against the object names of a
// whole tree.
func (r *Relation) resolveWithin(names map[string]struct{}) []string {
	return r.resolveEach(func(name string) EndpointState {
		if _, ok := names[name]; ok {
			return Resolved
		}
		return Unresolved
	})
}

func (r *Relation) resolveEach(resolve func(name string) EndpointState) []string {
	var unresolved []string
	for _, set := range []*ordered.Map[EndpointState]{&r.from, &r.to} {
		for _, name := range set.Keys() {
			state := resolve(name)
			set.Set(name, state)
			if state == Unresolved {
				unresolved = append(unresolved, name)
			}
		}
	}
	return unresolved
}

// AddProperty sets a write-once property.
func (r *Relation) AddProperty(key, value string) error {
	return addProperty(&r.properties, key, value)
}

// SetProperty stores v under key, replacing any existing value.
func (r *Relation) SetProperty(key string, v Value) error {
	return setProperty(&r.properties, key, v)
}

// RemoveProperty removes the property stored under key.
func (r *Relation) RemoveProperty(key string) error {
	return removeProperty(&r.properties, key)
}

// Property returns the value stored under key.
func (r *Relation) Property(key string) (Value, bool) {
	return r.properties.Get(key)
}

// Properties returns a copy of the properties.
func (r *Relation) Properties() *Properties {
	return r.properties.Clone(nil)
}

// Clone returns an unattached copy of r.
func (r *Relation) Clone() *Relation {
	c := &Relation{extends: r.extends}
	r.from.Range(func(k string, s EndpointState) bool {
		c.from.Set(k, s)
		return true
	})
	r.to.Range(func(k string, s EndpointState) bool {
		c.to.Set(k, s)
		return true
	})
	if r.directional != nil {
		d := *r.directional
		c.directional = &d
	}
	r.properties.Range(func(k string, v Value) bool {
		c.properties.Set(k, v)
		return true
	})
	return c
}

// Equal reports whether r and other hold the same values. Owners and
// resolution states are not compared.
func (r *Relation) Equal(other *Relation) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.extends != other.extends {
		return false
	}
	if (r.directional == nil) != (other.directional == nil) {
		return false
	}
	if r.directional != nil && *r.directional != *other.directional {
		return false
	}
	return sameKeys(r.from.Keys(), other.from.Keys()) &&
		sameKeys(r.to.Keys(), other.to.Keys()) &&
		propertiesEqual(&r.properties, &other.properties)
}

func (r *Relation) addEndpoint(set *ordered.Map[EndpointState], name, op string) error {
	if name == "" {
		return NewInvalidArgumentError("endpoint name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation(op)
	}
	state := r.resolve(name)
	if state == Unresolved && r.owner != nil {
		log.Warn().Str("endpoint", name).Str("operation", op).Msg("Relation endpoint not found in owner tree")
	}
	set.Set(name, state)
	return nil
}

func (r *Relation) resolve(name string) EndpointState {
	if r.owner == nil || r.owner.LookupObject(name) == nil {
		return Unresolved
	}
	return Resolved
}

func removeEndpoint(set *ordered.Map[EndpointState], name, op string) error {
	if name == "" {
		return NewInvalidArgumentError("endpoint name must not be empty", nil).
			WithCode(ErrCodeEmptyName).
			WithOperation(op)
	}
	if !set.Delete(name) {
		return NewNotFoundError("endpoint not found", nil).
			WithName(name).
			WithOperation(op)
	}
	return nil
}

func endpoints(set *ordered.Map[EndpointState]) []Endpoint {
	out := make([]Endpoint, 0, set.Len())
	set.Range(func(k string, s EndpointState) bool {
		out = append(out, Endpoint{Name: k, State: s})
		return true
	})
	return out
}
