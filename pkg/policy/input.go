package policy

import (
	"sort"
	"time"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/library"
	"github.com/rauzy/rauzy/pkg/model"
)

// Input is the document policies are evaluated against.
type Input struct {
	// Model is the serialized root object.
	Model *document.Object `json:"model"`

	// Classes lists the classes of the model library.
	Classes Classes `json:"classes"`

	// Objects lists every object below the root in pre-order.
	Objects []ObjectInfo `json:"objects"`

	// Relations lists every relation of the tree.
	Relations []RelationInfo `json:"relations"`

	Context *Context `json:"context"`
}

// Classes lists class names by namespace.
type Classes struct {
	Objects   []string `json:"objects"`
	Relations []string `json:"relations"`
}

// ObjectInfo describes one object of the tree.
type ObjectInfo struct {
	Path       string   `json:"path"`
	Name       string   `json:"name"`
	Extends    string   `json:"extends,omitempty"`
	Properties []string `json:"properties"`
	Children   int      `json:"children"`
	Relations  int      `json:"relations"`
}

// RelationInfo describes one relation of the tree. Path is the path of
// the owner joined with the relation name.
type RelationInfo struct {
	Path    string   `json:"path"`
	Owner   string   `json:"owner"`
	Extends string   `json:"extends,omitempty"`
	From    []string `json:"from"`
	To      []string `json:"to"`
}

// NewInput describes the tree of root for evaluation. lib may be nil.
func NewInput(name string, root *model.Object, lib *library.Library) *Input {
	in := &Input{
		Model:     root.Document(),
		Objects:   []ObjectInfo{},
		Relations: []RelationInfo{},
		Context: &Context{
			Model:     name,
			Timestamp: time.Now(),
		},
	}
	in.Classes.Objects = []string{}
	in.Classes.Relations = []string{}
	if lib != nil {
		in.Classes.Objects = append(in.Classes.Objects, lib.ObjectClasses()...)
		in.Classes.Relations = append(in.Classes.Relations, lib.RelationClasses()...)
	}

	type frame struct {
		path string
		obj  *model.Object
	}
	stack := []frame{{obj: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, relName := range top.obj.Relations() {
			rel, _ := top.obj.Relation(relName)
			in.Relations = append(in.Relations, RelationInfo{
				Path:    joinPath(top.path, relName),
				Owner:   top.path,
				Extends: rel.Extends(),
				From:    nonNil(rel.FromNames()),
				To:      nonNil(rel.ToNames()),
			})
		}

		children := top.obj.Objects()
		for i := len(children) - 1; i >= 0; i-- {
			child, _ := top.obj.Object(children[i])
			stack = append(stack, frame{path: joinPath(top.path, children[i]), obj: child})
		}
		if top.obj == root {
			continue
		}
		keys := nonNil(top.obj.PropertyKeys())
		sort.Strings(keys)
		in.Objects = append(in.Objects, ObjectInfo{
			Path:       top.path,
			Name:       lastSegment(top.path),
			Extends:    top.obj.Extends(),
			Properties: keys,
			Children:   top.obj.NumObjects(),
			Relations:  top.obj.NumRelations(),
		})
	}
	return in
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
