package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		unresolvedEndpointPolicy(),
		unknownClassPolicy(),
		propertyKeySeparatorPolicy(),
		emptyObjectPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, rego string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego:        rego,
	}
}

// unresolvedEndpointPolicy reports relations naming objects that are not
// in the tree. Transforms drop such relations.
func unresolvedEndpointPolicy() Policy {
	return builtin(
		"unresolved-endpoint",
		"Relation endpoints must name objects of the model",
		SeverityError,
		[]string{"relations", "integrity"},
		`package rauzy.lint.endpoints

import rego.v1

names := {o.name | some o in input.objects}

deny contains violation if {
	some rel in input.relations
	some name in array.concat(rel.from, rel.to)
	not name in names
	violation := {
		"message": sprintf("relation %s names %s, which is not an object of the model", [rel.path, name]),
		"severity": "error",
		"subject": rel.path,
	}
}`,
	)
}

// unknownClassPolicy reports extends naming no class of the library.
func unknownClassPolicy() Policy {
	return builtin(
		"unknown-class",
		"Objects and relations may only extend classes of the model library",
		SeverityError,
		[]string{"classes", "integrity"},
		`package rauzy.lint.classes

import rego.v1

object_classes := {c | some c in input.classes.objects}

relation_classes := {c | some c in input.classes.relations}

deny contains violation if {
	some obj in input.objects
	class := obj.extends
	not class in object_classes
	violation := {
		"message": sprintf("object %s extends unknown class %s", [obj.path, class]),
		"severity": "error",
		"subject": obj.path,
	}
}

deny contains violation if {
	some rel in input.relations
	class := rel.extends
	not class in relation_classes
	violation := {
		"message": sprintf("relation %s extends unknown class %s", [rel.path, class]),
		"severity": "error",
		"subject": rel.path,
	}
}`,
	)
}

// propertyKeySeparatorPolicy warns about property keys that collide with
// the keys produced by flattening.
func propertyKeySeparatorPolicy() Policy {
	return builtin(
		"property-key-separator",
		"Property keys should not contain _, which joins flattened keys",
		SeverityWarning,
		[]string{"properties", "flatten"},
		`package rauzy.lint.properties

import rego.v1

deny contains violation if {
	some obj in input.objects
	some key in obj.properties
	contains(key, "_")
	violation := {
		"message": sprintf("property %s of %s contains _ and may collide with a flattened key", [key, obj.path]),
		"severity": "warning",
		"subject": obj.path,
	}
}`,
	)
}

// emptyObjectPolicy notes objects that carry no information.
func emptyObjectPolicy() Policy {
	return builtin(
		"empty-object",
		"Objects without class, children or properties",
		SeverityInfo,
		[]string{"hygiene"},
		`package rauzy.lint.empty

import rego.v1

deny contains violation if {
	some obj in input.objects
	not obj.extends
	obj.children == 0
	count(obj.properties) == 0
	violation := {
		"message": sprintf("object %s has no class, children or properties", [obj.path]),
		"severity": "info",
		"subject": obj.path,
	}
}`,
	)
}
