package library

import (
	"fmt"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/ordered"
)

// Library stores object classes and relation classes in two separate
// namespaces. Classes are templates: the library keeps its own copies and
// models only ever receive instances.
type Library struct {
	objects   ordered.Map[*model.Object]
	relations ordered.Map[*model.Relation]
}

// New creates an empty library.
func New() *Library {
	return &Library{}
}

var (
	_ model.TemplateResolver = (*Library)(nil)
	_ model.ClassSet         = (*Library)(nil)
)

// Len returns the total number of classes.
func (l *Library) Len() int {
	return l.objects.Len() + l.relations.Len()
}

// AddObjectClass stores a copy of obj as object class name.
func (l *Library) AddObjectClass(name string, obj *model.Object) error {
	if err := checkClassName(name, "add_object_class"); err != nil {
		return err
	}
	if obj == nil {
		return model.NewInvalidArgumentError("object class must not be nil", nil).
			WithName(name).
			WithOperation("add_object_class")
	}
	if l.objects.Has(name) {
		return model.NewAlreadyExistsError("object class already exists", nil).
			WithName(name).
			WithOperation("add_object_class")
	}
	l.objects.Set(name, obj.Clone())
	return nil
}

// AddRelationClass stores a copy of rel as relation class name.
func (l *Library) AddRelationClass(name string, rel *model.Relation) error {
	if err := checkClassName(name, "add_relation_class"); err != nil {
		return err
	}
	if rel == nil {
		return model.NewInvalidArgumentError("relation class must not be nil", nil).
			WithName(name).
			WithOperation("add_relation_class")
	}
	if l.relations.Has(name) {
		return model.NewAlreadyExistsError("relation class already exists", nil).
			WithName(name).
			WithOperation("add_relation_class")
	}
	l.relations.Set(name, rel.Clone())
	return nil
}

// RemoveObjectClass deletes object class name.
func (l *Library) RemoveObjectClass(name string) error {
	if !l.objects.Delete(name) {
		return model.NewNotFoundError("object class not found", nil).
			WithName(name).
			WithOperation("remove_object_class")
	}
	return nil
}

// RemoveRelationClass deletes relation class name.
func (l *Library) RemoveRelationClass(name string) error {
	if !l.relations.Delete(name) {
		return model.NewNotFoundError("relation class not found", nil).
			WithName(name).
			WithOperation("remove_relation_class")
	}
	return nil
}

// ObjectClass returns the stored template of object class name. The
// template must not be modified; use InstantiateObject to get a copy.
func (l *Library) ObjectClass(name string) (*model.Object, error) {
	obj, ok := l.objects.Get(name)
	if !ok {
		return nil, model.NewNotFoundError("object class not found", nil).
			WithName(name).
			WithOperation("object_class")
	}
	return obj, nil
}

// RelationClass returns the stored template of relation class name.
func (l *Library) RelationClass(name string) (*model.Relation, error) {
	rel, ok := l.relations.Get(name)
	if !ok {
		return nil, model.NewNotFoundError("relation class not found", nil).
			WithName(name).
			WithOperation("relation_class")
	}
	return rel, nil
}

// ObjectClasses returns the object class names in insertion order.
func (l *Library) ObjectClasses() []string {
	return l.objects.Keys()
}

// RelationClasses returns the relation class names in insertion order.
func (l *Library) RelationClasses() []string {
	return l.relations.Keys()
}

// HasObjectClass reports whether object class name exists.
func (l *Library) HasObjectClass(name string) bool {
	return l.objects.Has(name)
}

// HasRelationClass reports whether relation class name exists.
func (l *Library) HasRelationClass(name string) bool {
	return l.relations.Has(name)
}

// InstantiateObject returns a new object built from class className. A
// class without a parent is copied as is. Otherwise the parent chain is
// instantiated from its root and each class's own properties are laid
// over those of its parent; the result extends className.
func (l *Library) InstantiateObject(className string) (*model.Object, error) {
	chain, err := classChain(className, "instantiate_object", func(name string) (extender, bool) {
		return l.objects.Get(name)
	})
	if err != nil {
		return nil, err
	}

	inst := chain[len(chain)-1].(*model.Object).Clone()
	for i := len(chain) - 2; i >= 0; i-- {
		if err := overlay(inst, chain[i].(*model.Object).Properties()); err != nil {
			return nil, err
		}
	}
	if len(chain) > 1 {
		if err := inst.SetExtends(className); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// InstantiateRelation returns a new relation built from class className
// in the same way as InstantiateObject.
func (l *Library) InstantiateRelation(className string) (*model.Relation, error) {
	chain, err := classChain(className, "instantiate_relation", func(name string) (extender, bool) {
		return l.relations.Get(name)
	})
	if err != nil {
		return nil, err
	}

	inst := chain[len(chain)-1].(*model.Relation).Clone()
	for i := len(chain) - 2; i >= 0; i-- {
		if err := overlay(inst, chain[i].(*model.Relation).Properties()); err != nil {
			return nil, err
		}
	}
	if len(chain) > 1 {
		if err := inst.SetExtends(className); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// extender is implemented by both kinds of class templates.
type extender interface {
	Extends() string
	SetProperty(key string, v model.Value) error
}

// classChain returns the templates from className up to the root of its
// inheritance chain.
func classChain(className, op string, get func(string) (extender, bool)) ([]extender, error) {
	var chain []extender
	seen := make(map[string]bool)
	for name := className; name != ""; {
		if seen[name] {
			return nil, model.NewCyclicDependencyError(
				fmt.Sprintf("class %s inherits from itself", name), nil,
			).WithName(className).WithOperation(op)
		}
		seen[name] = true

		tmpl, ok := get(name)
		if !ok {
			msg := "class not found"
			if name != className {
				msg = fmt.Sprintf("parent class %s of %s not found", name, className)
			}
			return nil, model.NewNotFoundError(msg, nil).
				WithName(name).
				WithOperation(op)
		}
		chain = append(chain, tmpl)
		name = tmpl.Extends()
	}
	return chain, nil
}

func overlay(dst extender, props *model.Properties) error {
	var err error
	props.Range(func(k string, v model.Value) bool {
		err = dst.SetProperty(k, v)
		return err == nil
	})
	return err
}

// Merge returns a new library holding the classes of lib1 and lib2. The
// result shares nothing with its inputs. Without overloading, a class
// name found in both libraries fails the whole merge; with overloading,
// lib2's class wins.
func Merge(lib1, lib2 *Library, overloading bool) (*Library, error) {
	if lib1 == nil || lib2 == nil {
		return nil, model.NewInvalidArgumentError("library must not be nil", nil).
			WithOperation("merge")
	}
	if !overloading {
		for _, name := range lib2.objects.Keys() {
			if lib1.objects.Has(name) {
				return nil, model.NewAlreadyExistsError("object class is in both libraries", nil).
					WithCode(model.ErrCodeNameConflict).
					WithName(name).
					WithOperation("merge")
			}
		}
		for _, name := range lib2.relations.Keys() {
			if lib1.relations.Has(name) {
				return nil, model.NewAlreadyExistsError("relation class is in both libraries", nil).
					WithCode(model.ErrCodeNameConflict).
					WithName(name).
					WithOperation("merge")
			}
		}
	}

	merged := New()
	for _, lib := range []*Library{lib1, lib2} {
		lib.objects.Range(func(name string, obj *model.Object) bool {
			merged.objects.Set(name, obj.Clone())
			return true
		})
		lib.relations.Range(func(name string, rel *model.Relation) bool {
			merged.relations.Set(name, rel.Clone())
			return true
		})
	}
	return merged, nil
}

// RenameObjectClass moves object class current to name next. The renamed
// class is appended after the other classes.
func (l *Library) RenameObjectClass(current, next string) error {
	if err := checkRename(current, next, "rename_object_class"); err != nil {
		return err
	}
	obj, ok := l.objects.Get(current)
	if !ok {
		return model.NewNotFoundError("object class not found", nil).
			WithName(current).
			WithOperation("rename_object_class")
	}
	if l.objects.Has(next) {
		return model.NewAlreadyExistsError("object class already exists", nil).
			WithName(next).
			WithOperation("rename_object_class")
	}
	l.objects.Delete(current)
	l.objects.Set(next, obj)
	return nil
}

// RenameRelationClass moves relation class current to name next.
func (l *Library) RenameRelationClass(current, next string) error {
	if err := checkRename(current, next, "rename_relation_class"); err != nil {
		return err
	}
	rel, ok := l.relations.Get(current)
	if !ok {
		return model.NewNotFoundError("relation class not found", nil).
			WithName(current).
			WithOperation("rename_relation_class")
	}
	if l.relations.Has(next) {
		return model.NewAlreadyExistsError("relation class already exists", nil).
			WithName(next).
			WithOperation("rename_relation_class")
	}
	l.relations.Delete(current)
	l.relations.Set(next, rel)
	return nil
}

// Document returns the serialized shape of the library.
func (l *Library) Document() *document.Library {
	doc := document.NewLibrary()
	l.objects.Range(func(name string, obj *model.Object) bool {
		doc.Objects.Set(name, obj.Document())
		return true
	})
	l.relations.Range(func(name string, rel *model.Relation) bool {
		doc.Relations.Set(name, rel.Document())
		return true
	})
	return doc
}

// Clone returns a deep copy of the library.
func (l *Library) Clone() *Library {
	c := New()
	l.objects.Range(func(name string, obj *model.Object) bool {
		c.objects.Set(name, obj.Clone())
		return true
	})
	l.relations.Range(func(name string, rel *model.Relation) bool {
		c.relations.Set(name, rel.Clone())
		return true
	})
	return c
}

func checkClassName(name, op string) error {
	if name == "" {
		return model.NewInvalidArgumentError("class name must not be empty", nil).
			WithCode(model.ErrCodeEmptyName).
			WithOperation(op)
	}
	return nil
}

func checkRename(current, next, op string) error {
	if current == "" || next == "" {
		return model.NewInvalidArgumentError("class names must not be empty", nil).
			WithCode(model.ErrCodeEmptyName).
			WithName(current).
			WithOperation(op)
	}
	return nil
}
