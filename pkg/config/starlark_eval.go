package config

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/ordered"
)

// Globals read back as documents after a script runs.
const (
	GlobalModel   = "model"
	GlobalLibrary = "library"
)

// StarlarkEvaluator executes model-building scripts safely.
//
// Scripts describe documents with three builtins:
//
//	wheel = obj(properties = {"diameter": "18"})
//	link = rel(frm = ["engine"], to = ["wheel"], directional = True)
//	model = obj(objects = {"wheel": wheel, "engine": obj()}, relations = {"link": link})
//	library = lib(objects = {"Wheel": wheel})
//
// A property value of None is the object marker.
type StarlarkEvaluator struct {
	timeout time.Duration
}

// NewStarlarkEvaluator creates a new Starlark evaluator.
func NewStarlarkEvaluator(timeout time.Duration) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second // Default timeout
	}
	return &StarlarkEvaluator{
		timeout: timeout,
	}
}

// Evaluate executes a Starlark script with the given input and returns
// the result. When the script binds the globals model or library, they are
// converted to documents.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, script string, input map[string]interface{}) (*StarlarkResult, error) {
	startTime := time.Now()

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: "rauzy",
		Print: func(_ *starlark.Thread, msg string) {
			log.Debug().Str("source", "starlark").Msg(msg)
		},
	}

	resultCh := make(chan *StarlarkResult, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := se.evaluateSync(thread, script, input)
		if err != nil {
			errCh <- err
		} else {
			resultCh <- result
		}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel("execution timeout")
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         fmt.Sprintf("execution timeout after %v", se.timeout),
		}, fmt.Errorf("starlark execution timeout")
	case err := <-errCh:
		return &StarlarkResult{
			ExecutionTime: time.Since(startTime),
			Error:         err.Error(),
		}, err
	case result := <-resultCh:
		result.ExecutionTime = time.Since(startTime)
		return result, nil
	}
}

// scriptOptions lets scripts build documents with top-level loops and
// conditionals.
var scriptOptions = &syntax.FileOptions{
	TopLevelControl: true,
	GlobalReassign:  true,
	While:           true,
}

// evaluateSync performs the actual Starlark evaluation synchronously.
func (se *StarlarkEvaluator) evaluateSync(thread *starlark.Thread, script string, input map[string]interface{}) (*StarlarkResult, error) {
	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"obj":    starlark.NewBuiltin("obj", builtinObject),
		"rel":    starlark.NewBuiltin("rel", builtinRelation),
		"lib":    starlark.NewBuiltin("lib", builtinLibrary),
	}

	for key, val := range input {
		starlarkVal, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert input %s: %w", key, err)
		}
		predeclared[key] = starlarkVal
	}

	globals, err := starlark.ExecFileOptions(scriptOptions, thread, "model.star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	result := &StarlarkResult{Output: make(map[string]interface{})}
	for name, val := range globals {
		// Skip internal variables (starting with _)
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert output %s: %w", name, err)
		}
		result.Output[name] = goVal
	}

	if v, ok := result.Output[GlobalModel]; ok {
		if result.Model, err = document.ParseObject(v); err != nil {
			return nil, fmt.Errorf("global %s: %w", GlobalModel, err)
		}
	}
	if v, ok := result.Output[GlobalLibrary]; ok {
		if result.Library, err = document.ParseLibrary(v); err != nil {
			return nil, fmt.Errorf("global %s: %w", GlobalLibrary, err)
		}
	}
	return result, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case *ordered.Map[any]:
		dict := starlark.NewDict(val.Len())
		var err error
		val.Range(func(k string, v any) bool {
			var starlarkVal starlark.Value
			if starlarkVal, err = toStarlarkValue(v); err != nil {
				return false
			}
			err = dict.SetKey(starlark.String(k), starlarkVal)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value. Dicts keep
// their insertion order.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]interface{}, len(val))
		for i, elem := range val {
			item, err := fromStarlarkValue(elem)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := ordered.NewMap[any]()
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict.Set(string(key), value)
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := ordered.NewMap[any]()
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict.Set(name, value)
		}
		return dict, nil
	case *starlark.Function, *starlark.Builtin:
		// helper functions defined by the script
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

// Built-in Starlark functions

// builtinObject implements obj(extends=, properties=, objects=, relations=).
func builtinObject(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		extends    starlark.String
		properties *starlark.Dict
		objects    *starlark.Dict
		relations  *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"extends?", &extends,
		"properties?", &properties,
		"objects?", &objects,
		"relations?", &relations,
	); err != nil {
		return nil, err
	}

	doc := newDocumentDict(document.NatureObject)
	if err := setIf(doc, "extends", extends, extends != ""); err != nil {
		return nil, err
	}
	if err := setIf(doc, "objects", objects, objects != nil); err != nil {
		return nil, err
	}
	if err := setIf(doc, "relations", relations, relations != nil); err != nil {
		return nil, err
	}
	if err := setIf(doc, "properties", properties, properties != nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// builtinRelation implements rel(extends=, frm=, to=, directional=, properties=).
func builtinRelation(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		extends     starlark.String
		from        *starlark.List
		to          *starlark.List
		directional starlark.Value = starlark.None
		properties  *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"extends?", &extends,
		"frm?", &from,
		"to?", &to,
		"directional?", &directional,
		"properties?", &properties,
	); err != nil {
		return nil, err
	}
	if _, isBool := directional.(starlark.Bool); directional != starlark.None && !isBool {
		return nil, fmt.Errorf("%s: directional must be a bool or None, got %s", b.Name(), directional.Type())
	}

	doc := newDocumentDict(document.NatureRelation)
	if err := setIf(doc, "extends", extends, extends != ""); err != nil {
		return nil, err
	}
	if err := setIf(doc, "from", from, from != nil); err != nil {
		return nil, err
	}
	if err := setIf(doc, "to", to, to != nil); err != nil {
		return nil, err
	}
	if err := setIf(doc, "directional", directional, directional != starlark.None); err != nil {
		return nil, err
	}
	if err := setIf(doc, "properties", properties, properties != nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// builtinLibrary implements lib(objects=, relations=).
func builtinLibrary(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var objects, relations *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"objects?", &objects,
		"relations?", &relations,
	); err != nil {
		return nil, err
	}

	doc := newDocumentDict(document.NatureLibrary)
	if objects == nil {
		objects = starlark.NewDict(0)
	}
	if relations == nil {
		relations = starlark.NewDict(0)
	}
	if err := doc.SetKey(starlark.String("objects"), objects); err != nil {
		return nil, err
	}
	if err := doc.SetKey(starlark.String("relations"), relations); err != nil {
		return nil, err
	}
	return doc, nil
}

func newDocumentDict(nature document.Nature) *starlark.Dict {
	doc := starlark.NewDict(6)
	// a fresh dict is not frozen, SetKey cannot fail
	_ = doc.SetKey(starlark.String("nature"), starlark.String(string(nature)))
	return doc
}

func setIf(doc *starlark.Dict, key string, v starlark.Value, ok bool) error {
	if !ok {
		return nil
	}
	return doc.SetKey(starlark.String(key), v)
}
