// Package library stores the object and relation classes that model
// objects extend, and loads them from serialized documents.
//
// Loading orders class definitions with a DependencyGraph: a class comes
// after the class it extends and, for object classes, after the classes
// extended by its direct children. A cycle aborts the load and leaves the
// library untouched.
//
// Instantiation resolves inheritance by value:
//
//	lib := library.New()
//	if err := lib.Load(doc); err != nil {
//		return err
//	}
//	car, err := lib.InstantiateObject("Car")
//
// The instance is an independent copy whose properties are those of the
// whole class chain, the most derived class winning.
package library
