package document

import (
	"github.com/rauzy/rauzy/pkg/ordered"
)

// Nature tags a serialized document with the kind of entity it holds.
type Nature string

const (
	// NatureObject marks a serialized object.
	NatureObject Nature = "object"

	// NatureRelation marks a serialized relation.
	NatureRelation Nature = "relation"

	// NatureLibrary marks a serialized class library.
	NatureLibrary Nature = "library"
)

// Properties maps property keys to values. A nil value is the object
// marker produced by flattening and is written as null.
type Properties = ordered.Map[*string]

// Object is the serialized shape of an object. Library is only set on the
// root object of a model file and holds the library path relative to it.
type Object struct {
	Nature     Nature                  `json:"nature" yaml:"nature"`
	Extends    string                  `json:"extends,omitempty" yaml:"extends,omitempty"`
	Objects    *ordered.Map[*Object]   `json:"objects,omitempty" yaml:"objects,omitempty"`
	Relations  *ordered.Map[*Relation] `json:"relations,omitempty" yaml:"relations,omitempty"`
	Properties *Properties             `json:"properties,omitempty" yaml:"properties,omitempty"`
	Library    string                  `json:"library,omitempty" yaml:"library,omitempty"`
}

// Relation is the serialized shape of a relation.
type Relation struct {
	Nature      Nature      `json:"nature" yaml:"nature"`
	Extends     string      `json:"extends,omitempty" yaml:"extends,omitempty"`
	From        []string    `json:"from,omitempty" yaml:"from,omitempty"`
	To          []string    `json:"to,omitempty" yaml:"to,omitempty"`
	Directional *bool       `json:"directional,omitempty" yaml:"directional,omitempty"`
	Properties  *Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Library is the serialized shape of a class library.
type Library struct {
	Nature    Nature                  `json:"nature" yaml:"nature"`
	Objects   *ordered.Map[*Object]   `json:"objects" yaml:"objects"`
	Relations *ordered.Map[*Relation] `json:"relations" yaml:"relations"`
}

// NewObject returns an empty object document.
func NewObject() *Object {
	return &Object{Nature: NatureObject}
}

// NewRelation returns an empty relation document.
func NewRelation() *Relation {
	return &Relation{Nature: NatureRelation}
}

// NewLibrary returns an empty library document.
func NewLibrary() *Library {
	return &Library{
		Nature:    NatureLibrary,
		Objects:   ordered.NewMap[*Object](),
		Relations: ordered.NewMap[*Relation](),
	}
}

// StringPtr returns a pointer to s, for building property maps.
func StringPtr(s string) *string {
	return &s
}
