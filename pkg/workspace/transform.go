package workspace

import (
	"context"

	"github.com/rauzy/rauzy/pkg/model"
	"github.com/rauzy/rauzy/pkg/telemetry"
)

// Transform names, used as metric labels and span names.
const (
	TransformAbstract           = "abstract"
	TransformFlatten            = "flatten"
	TransformFlattenWithExtends = "flatten_with_extends"
	TransformKeyword            = "keyword"
)

// Transform applies fn to the root and returns the result as a new model
// sharing m's library. The new model has no path, so its LibraryPath is
// the library file as seen from the working directory. Relations dropped
// by the transform are reported to telemetry.
func (m *Model) Transform(ctx context.Context, name string, fn func(root *model.Object) (*model.Object, error)) (*Model, error) {
	if m.Root == nil {
		return nil, model.NewInvalidStateError("model has no root object", nil).
			WithName(m.Name).
			WithOperation(name)
	}

	out := &Model{
		Name:    m.Name,
		Library: m.Library,
	}
	if m.LibraryPath != "" {
		out.LibraryPath = m.libraryFile()
	}
	err := telemetry.RecordTransform(ctx, m.Name, name, func(ctx context.Context) ([]string, error) {
		root, err := fn(m.Root)
		if err != nil {
			return nil, err
		}
		out.Root = root
		return model.RemovedRelations(m.Root, root), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Abstract keeps level levels of children.
func (m *Model) Abstract(ctx context.Context, level int) (*Model, error) {
	return m.Transform(ctx, TransformAbstract, func(root *model.Object) (*model.Object, error) {
		return root.AbstractToDepth(level), nil
	})
}

// Flatten folds the children below level levels into their ancestors. A
// negative level folds every descendant into the root.
func (m *Model) Flatten(ctx context.Context, level int) (*Model, error) {
	if level < 0 {
		level = 0
	}
	return m.Transform(ctx, TransformFlatten, func(root *model.Object) (*model.Object, error) {
		return root.FlattenToDepth(level), nil
	})
}

// FlattenWithExtends flattens the whole tree, expanding every object that
// extends a class with the class template first.
func (m *Model) FlattenWithExtends(ctx context.Context) (*Model, error) {
	return m.Transform(ctx, TransformFlattenWithExtends, func(root *model.Object) (*model.Object, error) {
		return root.FlattenWithExtends(m.Library)
	})
}

// Keyword keeps the descendants whose property key equals value.
func (m *Model) Keyword(ctx context.Context, key, value string) (*Model, error) {
	return m.Transform(ctx, TransformKeyword, func(root *model.Object) (*model.Object, error) {
		return root.KeywordAbstraction(key, value), nil
	})
}

// Compare reports how the flattened properties of m and other differ.
// With extends, class templates are expanded using each model's own
// library.
func (m *Model) Compare(ctx context.Context, other *Model, extends bool) (*model.Diff, error) {
	var diff *model.Diff
	err := telemetry.RecordCompare(ctx, m.Name, other.Name, func(ctx context.Context) (int, error) {
		self, theirs := m.Root, other.Root
		if extends {
			var err error
			if self, err = m.Root.FlattenWithExtends(m.Library); err != nil {
				return 0, err
			}
			if theirs, err = other.Root.FlattenWithExtends(other.Library); err != nil {
				return 0, err
			}
		}
		diff = self.Compare(theirs)
		return len(diff.OnlyInOther) + len(diff.OnlyInSelf) + len(diff.Differing), nil
	})
	if err != nil {
		return nil, err
	}
	return diff, nil
}
