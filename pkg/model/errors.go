package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a modeling error.
type ErrorKind string

const (
	// KindInvalidArgument indicates an empty or malformed name, key or value.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindInvalidState indicates a structural mutation of an object whose
	// composition is owned by the class it extends.
	KindInvalidState ErrorKind = "invalid_state"

	// KindNotFound indicates a missing object, relation, property, endpoint
	// or class.
	KindNotFound ErrorKind = "not_found"

	// KindAlreadyExists indicates a duplicate property, a merge name
	// collision or a rename to a taken name.
	KindAlreadyExists ErrorKind = "already_exists"

	// KindCyclicDependency indicates class definitions with no valid
	// topological order.
	KindCyclicDependency ErrorKind = "cyclic_dependency"
)

// Error is a classified modeling error. It always names the offending
// name or key and the operation attempted.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Name is the object, relation, property key or class involved.
	Name string `json:"name,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	switch {
	case e.Name != "" && e.Operation != "":
		msg = fmt.Sprintf("%s (name=%s, operation=%s)", msg, e.Name, e.Operation)
	case e.Name != "":
		msg = fmt.Sprintf("%s (name=%s)", msg, e.Name)
	case e.Operation != "":
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. A target without a
// code matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists}
	ErrCyclicDependency = &Error{Kind: KindCyclicDependency}
	ErrNameConflict     = &Error{Kind: KindAlreadyExists, Code: ErrCodeNameConflict}
)

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgumentError creates a new invalid argument error.
func NewInvalidArgumentError(message string, err error) *Error {
	return newError(KindInvalidArgument, message, err)
}

// NewInvalidStateError creates a new invalid state error.
func NewInvalidStateError(message string, err error) *Error {
	return newError(KindInvalidState, message, err)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string, err error) *Error {
	return newError(KindNotFound, message, err)
}

// NewAlreadyExistsError creates a new already exists error.
func NewAlreadyExistsError(message string, err error) *Error {
	return newError(KindAlreadyExists, message, err)
}

// NewCyclicDependencyError creates a new cyclic dependency error.
func NewCyclicDependencyError(message string, err error) *Error {
	return newError(KindCyclicDependency, message, err)
}

// WithName adds the offending name to an error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Classification returns the kind and code of e. Telemetry uses it to label
// error metrics without depending on this package.
func (e *Error) Classification() (kind, code string) {
	return string(e.Kind), e.Code
}

// KindOf returns the kind of a modeling error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsInvalidArgument returns true if the error is classified as an invalid argument.
func IsInvalidArgument(err error) bool {
	return KindOf(err) == KindInvalidArgument
}

// IsInvalidState returns true if the error is classified as an invalid state.
func IsInvalidState(err error) bool {
	return KindOf(err) == KindInvalidState
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsAlreadyExists returns true if the error is classified as already exists.
func IsAlreadyExists(err error) bool {
	return KindOf(err) == KindAlreadyExists
}

// IsCyclicDependency returns true if the error is classified as a cyclic dependency.
func IsCyclicDependency(err error) bool {
	return KindOf(err) == KindCyclicDependency
}

// Common error codes.
const (
	ErrCodeEmptyName         = "EMPTY_NAME"
	ErrCodeExtendsRestricted = "EXTENDS_RESTRICTED"
	ErrCodeDuplicateProperty = "DUPLICATE_PROPERTY"
	ErrCodeNameConflict      = "NAME_CONFLICT"
	ErrCodeUnknownClass      = "UNKNOWN_CLASS"
	ErrCodeContainmentCycle  = "CONTAINMENT_CYCLE"
	ErrCodeInvalidDocument   = "INVALID_DOCUMENT"
)
