// Package model holds the entities of a Rauzy model: objects arranged in a
// containment tree, relations between them and their string properties.
//
// Objects may extend a class from a library. The package only knows
// classes through the ClassSet and TemplateResolver interfaces; storage
// and instantiation of classes live in package library.
//
// # Transforms
//
// All transforms work on a copy and leave the receiver untouched:
//
//	abst := car.AbstractToDepth(1)
//	flat := car.Flatten()
//	diff := car.Compare(otherCar)
//
// After pruning, relations whose endpoints no longer name an object of the
// tree are removed (see RemoveInvalidRelations).
//
// # Errors
//
// Failures are *Error values classified by Kind. Use errors.Is with the
// sentinels (ErrNotFound, ErrAlreadyExists, ...) or the Is* helpers.
package model
