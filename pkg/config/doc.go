// Package config provides the configuration front ends of Rauzy: CLI
// settings, CUE schemas and documents, and Starlark model-building scripts.
//
// # Components
//
// Settings: CLI configuration loaded by LoadSettings from rauzy.yaml (in
// the working directory or $HOME/.config/rauzy) with RAUZY_* environment
// overrides, validated with struct tags.
//
// SchemaRegistry: CUE schemas for the three document shapes (#Object,
// #Relation, #Library). Custom schemas can be registered by name.
//
// CUEParser: compiles .cue files or package directories whose top-level
// value is an object or library document, validates them against the
// schema of their nature and converts them to package document types.
// Field order is preserved, so children keep the order they are written in.
//
// StarlarkEvaluator: runs model-building scripts with a timeout. The
// builtins obj, rel and lib build documents; the globals model and library
// are returned as documents.
//
// # Usage Example
//
//	parser := config.NewCUEParser()
//	doc, err := parser.DecodeObject(ctx, "car.cue")
//	if err != nil {
//	    return err
//	}
//
//	eval := config.NewStarlarkEvaluator(10 * time.Second)
//	res, err := eval.Evaluate(ctx, script, map[string]interface{}{"wheels": 4})
//	if err != nil {
//	    return err
//	}
//	car := res.Model
//
// # CUE Documents
//
// A model written in CUE:
//
//	nature: "object"
//	library: "vehicles.json"
//	objects: {
//	    car: {
//	        extends: "Car"
//	        properties: color: "red"
//	    }
//	    garage: {}
//	}
//	relations: parked: {
//	    from: ["car"]
//	    to: ["garage"]
//	}
//
// Property values must be strings or null.
package config
