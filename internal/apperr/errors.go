// Package apperr defines the error kinds shared by the prediction pipeline.
//
// The pipeline distinguishes malformed input, numeric failures inside the
// feature derivation and failures of external collaborators (weather
// provider, model serving, warehouse, enrichment). The HTTP layer maps each
// kind to a status code; everything else only has to classify.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	// KindValidation marks malformed or missing mandatory input.
	KindValidation Kind = "validation"

	// KindComputation marks a numeric singularity or out-of-domain input
	// encountered while deriving features.
	KindComputation Kind = "computation"

	// KindExternal marks a failure reported by an external collaborator.
	KindExternal Kind = "external"

	// KindUnavailable marks a collaborator that failed to load at startup.
	KindUnavailable Kind = "unavailable"

	// KindInternal is used for anything not classified above.
	KindInternal Kind = "internal"
)

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindComputation:
		return http.StatusUnprocessableEntity
	case KindExternal:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Op names the stage that failed
// (e.g. "weather.fetch", "model.crop"), Field is set for validation errors
// that concern a single input field.
type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error for a single input field.
func Validation(op, field, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Message: message}
}

// Computation creates a computation error.
func Computation(op, message string) *Error {
	return &Error{Kind: KindComputation, Op: op, Message: message}
}

// External wraps a failure of an external collaborator.
func External(op string, err error) *Error {
	return &Error{Kind: KindExternal, Op: op, Err: err}
}

// Unavailable wraps a collaborator that could not be loaded.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
