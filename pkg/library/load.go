package library

import (
	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/model"
)

// Load adds the classes of a serialized library. Relation classes are
// registered first, then object classes, each in dependency order. A class
// may extend a class of the same document or one already in l. The load
// is all or nothing: on error l is left as it was.
func (l *Library) Load(doc *document.Library) error {
	if doc == nil {
		return model.NewInvalidArgumentError("library document must not be nil", nil).
			WithOperation("load")
	}
	if doc.Nature != document.NatureLibrary {
		return model.NewInvalidArgumentError("not a library document (nature "+string(doc.Nature)+")", nil).
			WithCode(model.ErrCodeInvalidDocument).
			WithOperation("load")
	}

	staged := &stagedClasses{lib: l, doc: doc}

	relations, err := orderRelations(doc, l)
	if err != nil {
		return err
	}
	for _, node := range relations {
		rel, err := model.RelationFromDocument(node.Element, staged)
		if err != nil {
			return withClass(err, node.Name)
		}
		// class templates carry no endpoints
		rel.ClearEndpoints()
		staged.relations = append(staged.relations, named[*model.Relation]{node.Name, rel})
	}

	objects, err := orderObjects(doc, l)
	if err != nil {
		return err
	}
	for _, node := range objects {
		obj, err := model.FromDocument(node.Element, staged)
		if err != nil {
			return withClass(err, node.Name)
		}
		staged.objects = append(staged.objects, named[*model.Object]{node.Name, obj})
	}

	for _, r := range staged.relations {
		l.relations.Set(r.name, r.value)
	}
	for _, o := range staged.objects {
		l.objects.Set(o.name, o.value)
	}
	log.Info().
		Int("relation_classes", len(staged.relations)).
		Int("object_classes", len(staged.objects)).
		Msg("Library loaded")
	return nil
}

func orderRelations(doc *document.Library, existing *Library) ([]Node[*document.Relation], error) {
	graph := NewDependencyGraph[*document.Relation]()
	var err error
	doc.Relations.Range(func(name string, rel *document.Relation) bool {
		if existing.relations.Has(name) {
			err = model.NewAlreadyExistsError("relation class already exists", nil).
				WithName(name).
				WithOperation("load")
			return false
		}
		if rel == nil {
			err = model.NewInvalidArgumentError("relation class must not be null", nil).
				WithCode(model.ErrCodeInvalidDocument).
				WithName(name).
				WithOperation("load")
			return false
		}
		err = graph.AddClass(name, rel)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	doc.Relations.Range(func(name string, rel *document.Relation) bool {
		err = link(graph, existing.HasRelationClass, name, rel.Extends)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	order, err := graph.Build()
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("order", nodeNames(order)).Msg("Relation class load order")
	return order, nil
}

func orderObjects(doc *document.Library, existing *Library) ([]Node[*document.Object], error) {
	graph := NewDependencyGraph[*document.Object]()
	var err error
	doc.Objects.Range(func(name string, obj *document.Object) bool {
		if existing.objects.Has(name) {
			err = model.NewAlreadyExistsError("object class already exists", nil).
				WithName(name).
				WithOperation("load")
			return false
		}
		if obj == nil {
			err = model.NewInvalidArgumentError("object class must not be null", nil).
				WithCode(model.ErrCodeInvalidDocument).
				WithName(name).
				WithOperation("load")
			return false
		}
		err = graph.AddClass(name, obj)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	doc.Objects.Range(func(name string, obj *document.Object) bool {
		if err = link(graph, existing.HasObjectClass, name, obj.Extends); err != nil {
			return false
		}
		// contained objects must be able to resolve their own class
		obj.Objects.Range(func(_ string, child *document.Object) bool {
			if child != nil {
				err = link(graph, existing.HasObjectClass, name, child.Extends)
			}
			return err == nil
		})
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	order, err := graph.Build()
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("order", nodeNames(order)).Msg("Object class load order")
	return order, nil
}

// link adds the dependency of class name on target. Targets outside the
// batch must already be known to the library.
func link[T any](graph *DependencyGraph[T], known func(string) bool, name, target string) error {
	if target == "" {
		return nil
	}
	if graph.Has(target) {
		return graph.AddDependency(name, target)
	}
	if !known(target) {
		return model.NewNotFoundError("class "+name+" depends on unknown class "+target, nil).
			WithCode(model.ErrCodeUnknownClass).
			WithName(target).
			WithOperation("load")
	}
	return nil
}

func nodeNames[T any](nodes []Node[T]) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

func withClass(err error, class string) error {
	if e, ok := err.(*model.Error); ok {
		return e.WithDetail("class", class)
	}
	return err
}

type named[T any] struct {
	name  string
	value T
}

// stagedClasses answers class lookups during a load: a class exists if
// it is in the library or in the document being loaded.
type stagedClasses struct {
	lib       *Library
	doc       *document.Library
	objects   []named[*model.Object]
	relations []named[*model.Relation]
}

func (s *stagedClasses) HasObjectClass(name string) bool {
	return s.lib.HasObjectClass(name) || s.doc.Objects.Has(name)
}

func (s *stagedClasses) HasRelationClass(name string) bool {
	return s.lib.HasRelationClass(name) || s.doc.Relations.Has(name)
}
