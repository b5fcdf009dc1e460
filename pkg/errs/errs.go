// Package errs holds the error taxonomy shared by the services and the transports.
//
// Every error type unwraps to a kind sentinel (ErrValidation, ErrConflict,
// ErrNotFound, ErrInvalidState) and, when set, to a more specific reason so
// callers can match either with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError reports malformed or missing input. No state was changed.
type ValidationError struct {
	Field  string
	Reason string
	Cause  error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func NewValidationErrorWithCause(field, reason string, cause error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Cause: cause}
}

func (e *ValidationError) Error() string {
	return format(ErrValidation, fmt.Sprintf("%s: %s", e.Field, e.Reason), e.Cause)
}

func (e *ValidationError) Unwrap() []error { return unwrap(ErrValidation, e.Cause) }

// ConflictError reports a request that collides with the current state of
// another party, e.g. an order someone else already claimed.
type ConflictError struct {
	Resource string
	Reason   string
	Cause    error
}

func NewConflictError(resource, reason string, cause error) *ConflictError {
	return &ConflictError{Resource: resource, Reason: reason, Cause: cause}
}

func (e *ConflictError) Error() string {
	return format(ErrConflict, fmt.Sprintf("%s: %s", e.Resource, e.Reason), e.Cause)
}

func (e *ConflictError) Unwrap() []error { return unwrap(ErrConflict, e.Cause) }

// NotFoundError reports an unknown identifier.
type NotFoundError struct {
	Resource string
	ID       any
	Cause    error
}

func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func NewNotFoundErrorWithCause(resource string, id any, cause error) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, Cause: cause}
}

func (e *NotFoundError) Error() string {
	return format(ErrNotFound, fmt.Sprintf("%s %v", e.Resource, e.ID), e.Cause)
}

func (e *NotFoundError) Unwrap() []error { return unwrap(ErrNotFound, e.Cause) }

// InvalidStateError reports a transition attempted from a state that does not allow it.
type InvalidStateError struct {
	Resource string
	ID       string
	State    string
	Action   string
	Cause    error
}

func NewInvalidStateError(resource, id, state, action string, cause error) *InvalidStateError {
	return &InvalidStateError{Resource: resource, ID: id, State: state, Action: action, Cause: cause}
}

func (e *InvalidStateError) Error() string {
	return format(ErrInvalidState, fmt.Sprintf("cannot %s %s %s in state %s", e.Action, e.Resource, e.ID, e.State), e.Cause)
}

func (e *InvalidStateError) Unwrap() []error { return unwrap(ErrInvalidState, e.Cause) }

// Reason returns the human readable part of a taxonomy error, falling back to err.Error().
func Reason(err error) string {
	var (
		v *ValidationError
		c *ConflictError
		n *NotFoundError
		s *InvalidStateError
	)
	switch {
	case errors.As(err, &v):
		if v.Cause != nil {
			return v.Cause.Error()
		}
		return v.Reason
	case errors.As(err, &c):
		if c.Cause != nil {
			return c.Cause.Error()
		}
		return c.Reason
	case errors.As(err, &n):
		return fmt.Sprintf("%s not found", n.Resource)
	case errors.As(err, &s):
		if s.Cause != nil {
			return s.Cause.Error()
		}
		return fmt.Sprintf("%s is %s", s.Resource, s.State)
	}
	return err.Error()
}

func format(kind error, msg string, cause error) string {
	if cause == nil {
		return fmt.Sprintf("%s: %s", kind, msg)
	}
	return fmt.Sprintf("%s: %s (cause: %s)", kind, msg, cause)
}

func unwrap(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}
