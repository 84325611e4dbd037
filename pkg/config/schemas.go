package config

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/rauzy/rauzy/pkg/document"
)

// Built-in schema names.
const (
	SchemaObject   = "object"
	SchemaRelation = "relation"
	SchemaLibrary  = "library"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

// registerBuiltInSchemas registers the document schemas. They share one
// source because objects and relations refer to each other.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	for _, name := range []string{SchemaObject, SchemaRelation, SchemaLibrary} {
		if err := sr.RegisterSchema(name, builtinDocumentSchema); err != nil {
			panic(err)
		}
	}
}

// RegisterSchema compiles a CUE schema and registers it under name. If the
// source declares a definition named after the schema (#Object for
// "object"), data is validated against that definition; otherwise against
// the whole value.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	if name == "" {
		return fmt.Errorf("schema name must not be empty")
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definitionName(name)))
	if def.Exists() {
		val = def
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema. data is
// anything encoding/json can marshal.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// a cue.Context is not safe for concurrent use
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.CompileBytes(raw, cue.Filename(schemaName+".json"))
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names in sorted order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateObject validates an object document.
func (sr *SchemaRegistry) ValidateObject(ctx context.Context, doc *document.Object) error {
	return sr.ValidateAgainstSchema(ctx, SchemaObject, doc)
}

// ValidateRelation validates a relation document.
func (sr *SchemaRegistry) ValidateRelation(ctx context.Context, doc *document.Relation) error {
	return sr.ValidateAgainstSchema(ctx, SchemaRelation, doc)
}

// ValidateLibrary validates a library document.
func (sr *SchemaRegistry) ValidateLibrary(ctx context.Context, doc *document.Library) error {
	return sr.ValidateAgainstSchema(ctx, SchemaLibrary, doc)
}

func definitionName(schema string) string {
	return "#" + strings.ToUpper(schema[:1]) + schema[1:]
}

// Built-in schema definitions

const builtinDocumentSchema = `
// Property values are strings; null marks a flattened object.
#Properties: {[string]: string | null}

#Object: {
	nature?: "object"

	// Extends names an object class of the library.
	extends?: string

	objects?: {[string]: #Object}
	relations?: {[string]: #Relation}
	properties?: #Properties

	// Library is the library file of a root object.
	library?: string
}

#Relation: {
	nature?: "relation"
	extends?: string

	// Endpoints name objects of the enclosing tree.
	from?: [...string]
	to?: [...string]

	directional?: bool
	properties?: #Properties
}

#Library: {
	nature!: "library"
	objects?: {[string]: #Object} | null
	relations?: {[string]: #Relation} | null
}
`
