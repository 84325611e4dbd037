// Package policy lints rauzy models with Open Policy Agent (OPA) Rego
// policies.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files and directories, and watches them
//  3. Input - Describes a model tree as the document policies query
//  4. Built-in Policies - Checks every model gets
//
// # Usage
//
// Creating a policy engine and linting a loaded model:
//
//	logger := zerolog.New(os.Stderr)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.EvaluateModel(ctx, m.Name, m.Root, m.Library)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s (%s)\n", v.Subject, v.Message, v.Policy)
//	    }
//	}
//
// Loading custom policies:
//
//	err = engine.LoadPolicies(ctx, []string{"./policies"})
//
// # Input
//
// Policies see the model through input:
//
//	input.model      the serialized root object
//	input.classes    {"objects": [...], "relations": [...]}
//	input.objects    [{"path", "name", "extends", "properties", "children", "relations"}]
//	input.relations  [{"path", "owner", "extends", "from", "to"}]
//	input.context    {"model", "environment", "timestamp"}
//
// Paths join object names with /. The root object has no path and is not
// listed in input.objects.
//
// # Built-in Policies
//
//  1. unresolved-endpoint (error) - Relation endpoints must be objects of the model
//  2. unknown-class (error) - Extends must name a class of the library
//  3. property-key-separator (warning) - Property keys should not contain _
//  4. empty-object (info) - Objects without class, children or properties
//
// # Custom Policies
//
// A policy declares a deny set in rego.v1 syntax. Elements are either
// strings or objects with message, severity and subject fields:
//
//	# Wheels must carry a diameter
//	# severity: error
//	package custom.wheels
//
//	import rego.v1
//
//	deny contains violation if {
//	    some obj in input.objects
//	    obj.extends == "Wheel"
//	    not "diameter" in obj.properties
//	    violation := {
//	        "message": sprintf("%s has no diameter", [obj.path]),
//	        "subject": obj.path,
//	    }
//	}
//
// # Severity Levels
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed
//   - error: Issues that make a model invalid
//   - critical: Severe issues requiring immediate attention
//
// Result.Allowed is false when any violation is an error or critical.
//
// # Hot Reload
//
// The loader watches policy files and hands every reloaded set to the
// engine:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, engine.ReplacePolicies)
//
// Policies are compiled once into prepared queries and reused for every
// evaluation.
package policy
