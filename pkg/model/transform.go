package model

import (
	"github.com/rs/zerolog/log"
)

// PathSeparator joins a flattened child name and the key of a hoisted
// property.
const PathSeparator = "_"

// AbstractToDepth returns a copy of o keeping level levels of children.
// At level 0 only o itself and its properties remain. Relations left
// pointing outside the pruned tree are removed.
func (o *Object) AbstractToDepth(level int) *Object {
	abst := o.Clone()
	type frame struct {
		obj   *Object
		level int
	}
	stack := []frame{{abst, level}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.level <= 0 {
			top.obj.objects.Clear()
			continue
		}
		top.obj.objects.Range(func(_ string, child *Object) bool {
			stack = append(stack, frame{child, top.level - 1})
			return true
		})
	}
	abst.RemoveInvalidRelations()
	return abst
}

// FlattenToDepth returns a copy of o where the children below level
// levels are folded into their ancestor's properties. A folded child
// named c contributes the property c set to the object marker and each
// of its properties k as c_k.
func (o *Object) FlattenToDepth(level int) *Object {
	flat := o.Clone()
	frames := collectLevels(flat, level)
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].level <= 0 {
			hoistChildren(frames[i].obj)
		}
	}
	flat.RemoveInvalidRelations()
	return flat
}

// Flatten folds every descendant into o's properties.
func (o *Object) Flatten() *Object {
	return o.FlattenToDepth(0)
}

// FlattenWithExtends flattens o like Flatten, but every object that
// extends a class first receives the flattened properties of the class
// template. Properties set on the object itself win over inherited ones.
func (o *Object) FlattenWithExtends(resolver TemplateResolver) (*Object, error) {
	if resolver == nil {
		return nil, NewInvalidArgumentError("template resolver must not be nil", nil).
			WithOperation("flatten_with_extends")
	}
	flat := o.Clone()
	if err := flattenExpanded(flat, resolver, map[string]bool{}); err != nil {
		return nil, err
	}
	flat.RemoveInvalidRelations()
	return flat, nil
}

func flattenExpanded(root *Object, resolver TemplateResolver, visiting map[string]bool) error {
	frames := collectLevels(root, 0)
	for i := len(frames) - 1; i >= 0; i-- {
		obj := frames[i].obj
		if ext := obj.extends; ext != "" {
			if visiting[ext] {
				return NewCyclicDependencyError("class contains an instance of itself", nil).
					WithName(ext).
					WithOperation("flatten_with_extends")
			}
			tmpl, err := resolver.InstantiateObject(ext)
			if err != nil {
				return err
			}
			tmpl.extends = ""
			visiting[ext] = true
			err = flattenExpanded(tmpl, resolver, visiting)
			delete(visiting, ext)
			if err != nil {
				return err
			}
			overlayProperties(&tmpl.properties, &obj.properties)
			obj.properties = tmpl.properties
		}
		hoistChildren(obj)
	}
	return nil
}

// KeywordAbstraction returns a copy of o keeping only the descendants
// whose property key equals value. A child that does not match is
// removed with its whole subtree. The root is always kept.
func (o *Object) KeywordAbstraction(key, value string) *Object {
	abst := o.Clone()
	want := String(value)
	stack := []*Object{abst}
	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, name := range obj.objects.Keys() {
			child, _ := obj.objects.Get(name)
			if v, ok := child.properties.Get(key); ok && v == want {
				stack = append(stack, child)
				continue
			}
			obj.objects.Delete(name)
		}
	}
	abst.RemoveInvalidRelations()
	return abst
}

// RemoveInvalidRelations removes, at every level of o, the relations
// with an endpoint that names no object of o's subtree. Unlike the
// transforms it modifies o. It returns the paths of removed relations.
func (o *Object) RemoveInvalidRelations() []string {
	names := o.ObjectNames()
	var removed []string
	o.walkPaths(func(path string, obj *Object) {
		for _, name := range obj.relations.Keys() {
			rel, _ := obj.relations.Get(name)
			if endpointsWithin(rel, names) {
				continue
			}
			obj.relations.Delete(name)
			rel.owner = nil
			removed = append(removed, joinPath(path, name))
		}
	})
	if len(removed) > 0 {
		log.Debug().Strs("relations", removed).Msg("Removed invalid relations")
	}
	return removed
}

// RemovedRelations returns the paths of the relations of before that a
// transform dropped from an owner still present in after. Relations that
// disappeared together with their owner are not reported.
func RemovedRelations(before, after *Object) []string {
	kept := map[string]*Object{}
	after.walkPaths(func(path string, obj *Object) {
		kept[path] = obj
	})
	var removed []string
	before.walkPaths(func(path string, obj *Object) {
		owner, ok := kept[path]
		if !ok {
			return
		}
		for _, name := range obj.relations.Keys() {
			if !owner.relations.Has(name) {
				removed = append(removed, joinPath(path, name))
			}
		}
	})
	return removed
}

func endpointsWithin(rel *Relation, names map[string]struct{}) bool {
	for _, set := range [][]string{rel.from.Keys(), rel.to.Keys()} {
		for _, n := range set {
			if _, ok := names[n]; !ok {
				return false
			}
		}
	}
	return true
}

type levelFrame struct {
	obj   *Object
	level int
}

// collectLevels lists the objects of the tree in pre-order with the
// flattening level each one is processed at. Walking the list backwards
// visits every child before its parent.
func collectLevels(root *Object, level int) []levelFrame {
	var out []levelFrame
	stack := []levelFrame{{root, level}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)
		keys := top.obj.objects.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			child, _ := top.obj.objects.Get(keys[i])
			stack = append(stack, levelFrame{child, top.level - 1})
		}
	}
	return out
}

// hoistChildren folds already flattened children into obj's properties
// and drops them.
func hoistChildren(obj *Object) {
	if obj.objects.Len() == 0 {
		return
	}
	obj.objects.Range(func(name string, child *Object) bool {
		obj.properties.Set(name, ObjectMarker())
		child.properties.Range(func(key string, v Value) bool {
			obj.properties.Set(name+PathSeparator+key, v)
			return true
		})
		return true
	})
	obj.objects.Clear()
}

// overlayProperties copies src over dst.
func overlayProperties(dst, src *Properties) {
	src.Range(func(k string, v Value) bool {
		dst.Set(k, v)
		return true
	})
}

// walkPaths visits every object in pre-order with its slash-separated
// path from o. The root has the empty path.
func (o *Object) walkPaths(fn func(path string, obj *Object)) {
	type frame struct {
		path string
		obj  *Object
	}
	stack := []frame{{obj: o}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(top.path, top.obj)
		keys := top.obj.objects.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			child, _ := top.obj.objects.Get(keys[i])
			stack = append(stack, frame{joinPath(top.path, keys[i]), child})
		}
	}
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
