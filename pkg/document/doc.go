// Package document defines the serialized shapes of objects, relations and
// class libraries, the JSON and YAML codecs for them, and a parser that
// builds them from generic structured values (CUE exports, Starlark
// results, encoding/json output).
//
// Documents are plain data: they carry names, not references, and keep the
// declaration order of every mapping. Converting them into live model trees
// is done by pkg/model and pkg/library.
package document
