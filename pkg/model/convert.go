package model

import (
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/ordered"
)

// ClassSet reports which classes exist. FromDocument uses it to reject
// references to unknown classes.
type ClassSet interface {
	HasObjectClass(name string) bool
	HasRelationClass(name string) bool
}

// TemplateResolver instantiates object classes for the inheritance-aware
// transforms.
type TemplateResolver interface {
	InstantiateObject(className string) (*Object, error)
}

// FromDocument builds an object tree from its serialized shape. Children
// and relations are taken from the document even under an object that
// extends a class. When classes is not nil every extends must name a
// known class. Relation endpoints are resolved once the whole tree is
// built.
func FromDocument(doc *document.Object, classes ClassSet) (*Object, error) {
	if doc == nil {
		return nil, NewInvalidArgumentError("object document must not be nil", nil).
			WithOperation("from_document")
	}
	type pending struct {
		name string
		doc  *document.Object
		dst  *Object
	}
	root := &Object{}
	stack := []pending{{doc: doc, dst: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.doc == nil {
			return nil, NewInvalidArgumentError("object document must not be nil", nil).
				WithCode(ErrCodeInvalidDocument).
				WithName(top.name).
				WithOperation("from_document")
		}
		if top.doc.Nature != "" && top.doc.Nature != document.NatureObject {
			return nil, NewInvalidArgumentError("unexpected nature "+string(top.doc.Nature), nil).
				WithCode(ErrCodeInvalidDocument).
				WithName(top.name).
				WithOperation("from_document")
		}
		if ext := top.doc.Extends; ext != "" {
			if classes != nil && !classes.HasObjectClass(ext) {
				return nil, NewNotFoundError("unknown object class "+ext, nil).
					WithCode(ErrCodeUnknownClass).
					WithName(top.name).
					WithOperation("from_document")
			}
			top.dst.extends = ext
		}
		if err := propertiesFromDocument(&top.dst.properties, top.doc.Properties); err != nil {
			return nil, err
		}

		var relErr error
		top.doc.Relations.Range(func(name string, relDoc *document.Relation) bool {
			rel, err := RelationFromDocument(relDoc, classes)
			if err != nil {
				relErr = withNameIfUnset(err, name)
				return false
			}
			rel.owner = top.dst
			top.dst.relations.Set(name, rel)
			return true
		})
		if relErr != nil {
			return nil, relErr
		}

		top.doc.Objects.Range(func(name string, childDoc *document.Object) bool {
			child := &Object{}
			top.dst.objects.Set(name, child)
			stack = append(stack, pending{name: name, doc: childDoc, dst: child})
			return true
		})
	}
	if unresolved := root.ResolveRelations(); len(unresolved) > 0 {
		log.Warn().Strs("relations", unresolved).Msg("Relations with unresolved endpoints")
	}
	return root, nil
}

// RelationFromDocument builds an unattached relation from its serialized
// shape. Endpoints are recorded unresolved.
func RelationFromDocument(doc *document.Relation, classes ClassSet) (*Relation, error) {
	if doc == nil {
		return nil, NewInvalidArgumentError("relation document must not be nil", nil).
			WithCode(ErrCodeInvalidDocument).
			WithOperation("from_document")
	}
	if doc.Nature != "" && doc.Nature != document.NatureRelation {
		return nil, NewInvalidArgumentError("unexpected nature "+string(doc.Nature), nil).
			WithCode(ErrCodeInvalidDocument).
			WithOperation("from_document")
	}
	rel := &Relation{}
	if doc.Extends != "" {
		if classes != nil && !classes.HasRelationClass(doc.Extends) {
			return nil, NewNotFoundError("unknown relation class "+doc.Extends, nil).
				WithCode(ErrCodeUnknownClass).
				WithOperation("from_document")
		}
		rel.extends = doc.Extends
	}
	for _, name := range doc.From {
		if err := rel.AddFrom(name); err != nil {
			return nil, err
		}
	}
	for _, name := range doc.To {
		if err := rel.AddTo(name); err != nil {
			return nil, err
		}
	}
	if doc.Directional != nil {
		rel.SetDirectional(*doc.Directional)
	}
	if err := propertiesFromDocument(&rel.properties, doc.Properties); err != nil {
		return nil, err
	}
	return rel, nil
}

// ResolveRelations resolves the endpoints of every relation in the tree
// against the objects below o, the same names RemoveInvalidRelations
// keeps, and returns the paths of relations left with unresolved
// endpoints.
func (o *Object) ResolveRelations() []string {
	names := o.ObjectNames()
	var unresolved []string
	o.walkPaths(func(path string, obj *Object) {
		obj.relations.Range(func(name string, rel *Relation) bool {
			if len(rel.resolveWithin(names)) > 0 {
				unresolved = append(unresolved, joinPath(path, name))
			}
			return true
		})
	})
	return unresolved
}

// Document returns the serialized shape of the tree.
func (o *Object) Document() *document.Object {
	type pending struct {
		src *Object
		dst *document.Object
	}
	root := document.NewObject()
	stack := []pending{{src: o, dst: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		top.dst.Extends = top.src.extends
		top.dst.Properties = propertiesToDocument(&top.src.properties)
		if top.src.relations.Len() > 0 {
			top.dst.Relations = ordered.NewMap[*document.Relation]()
			top.src.relations.Range(func(name string, rel *Relation) bool {
				top.dst.Relations.Set(name, rel.Document())
				return true
			})
		}
		if top.src.objects.Len() > 0 {
			top.dst.Objects = ordered.NewMap[*document.Object]()
			top.src.objects.Range(func(name string, child *Object) bool {
				d := document.NewObject()
				top.dst.Objects.Set(name, d)
				stack = append(stack, pending{src: child, dst: d})
				return true
			})
		}
	}
	return root
}

// Document returns the serialized shape of the relation.
func (r *Relation) Document() *document.Relation {
	doc := document.NewRelation()
	doc.Extends = r.extends
	doc.From = r.from.Keys()
	doc.To = r.to.Keys()
	if r.directional != nil {
		d := *r.directional
		doc.Directional = &d
	}
	doc.Properties = propertiesToDocument(&r.properties)
	return doc
}

func propertiesFromDocument(dst *Properties, src *document.Properties) error {
	var err error
	src.Range(func(key string, v *string) bool {
		if key == "" {
			err = NewInvalidArgumentError("property key must not be empty", nil).
				WithCode(ErrCodeEmptyName).
				WithOperation("from_document")
			return false
		}
		dst.Set(key, valueFromPointer(v))
		return true
	})
	return err
}

func propertiesToDocument(src *Properties) *document.Properties {
	if src.Len() == 0 {
		return nil
	}
	out := ordered.NewMap[*string]()
	src.Range(func(key string, v Value) bool {
		out.Set(key, v.pointer())
		return true
	})
	return out
}

func withNameIfUnset(err error, name string) error {
	if e, ok := err.(*Error); ok && e.Name == "" {
		return e.WithName(name)
	}
	return err
}
