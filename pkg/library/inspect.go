package library

import (
	"github.com/rauzy/rauzy/pkg/model"
)

// ObjectGraph returns the built dependency graph of the object classes.
// A class depends on the class it extends and on the classes of its
// direct children.
func (l *Library) ObjectGraph() (*DependencyGraph[*model.Object], error) {
	graph := NewDependencyGraph[*model.Object]()
	for _, name := range l.ObjectClasses() {
		obj, _ := l.objects.Get(name)
		if err := graph.AddClass(name, obj); err != nil {
			return nil, err
		}
	}
	for _, name := range l.ObjectClasses() {
		obj, _ := l.objects.Get(name)
		deps := []string{obj.Extends()}
		for _, childName := range obj.Objects() {
			child, _ := obj.Object(childName)
			deps = append(deps, child.Extends())
		}
		for _, dep := range deps {
			if dep == "" || !graph.Has(dep) {
				continue
			}
			if err := graph.AddDependency(name, dep); err != nil {
				return nil, err
			}
		}
	}
	if _, err := graph.Build(); err != nil {
		return nil, err
	}
	return graph, nil
}

// RelationGraph returns the built dependency graph of the relation
// classes.
func (l *Library) RelationGraph() (*DependencyGraph[*model.Relation], error) {
	graph := NewDependencyGraph[*model.Relation]()
	for _, name := range l.RelationClasses() {
		rel, _ := l.relations.Get(name)
		if err := graph.AddClass(name, rel); err != nil {
			return nil, err
		}
	}
	for _, name := range l.RelationClasses() {
		rel, _ := l.relations.Get(name)
		if dep := rel.Extends(); dep != "" && graph.Has(dep) {
			if err := graph.AddDependency(name, dep); err != nil {
				return nil, err
			}
		}
	}
	if _, err := graph.Build(); err != nil {
		return nil, err
	}
	return graph, nil
}
