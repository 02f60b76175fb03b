package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return NewValidationError(errors.New(field+": "+msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing resource. Packages declare one as their ErrNotFound sentinel.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConflictError reports a request that clashes with the current state. Conflict carries the clashing record.
type ConflictError struct {
	Type     string      `json:"conflict_type"`
	Message  string      `json:"message"`
	Conflict interface{} `json:"conflict,omitempty"`
}

func NewConflictError(typ, msg string, conflict interface{}) error {
	return &ConflictError{Type: typ, Message: msg, Conflict: conflict}
}

func (err ConflictError) Error() string {
	return err.Message
}

type AuthorizationError struct {
	message string
}

// ErrForbidden is returned when the caller's role does not allow the operation.
var ErrForbidden = NewAuthorizationError("permission denied")

func NewAuthorizationError(msg string) error {
	return &AuthorizationError{message: msg}
}

func (err AuthorizationError) Error() string {
	return err.message
}

// StorageError wraps a failure of the underlying store. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (err StorageError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err StorageError) Unwrap() error {
	return err.Err
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
