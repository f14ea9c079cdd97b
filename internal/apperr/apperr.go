// Package apperr classifies errors by the behavior they require at the
// transport boundary rather than by Go type: Validation, NotFound, Conflict,
// and Dependency each map to a fixed HTTP status, so handlers never have to
// guess what a returned error means.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the behavioral classification of an Error.
type Kind int

const (
	// KindValidation marks caller-supplied data that violates a contract.
	// Never retried.
	KindValidation Kind = iota
	// KindNotFound marks a missing target ID. Idempotent on repetition.
	KindNotFound
	// KindConflict marks a state-machine violation. Callers may refetch and retry.
	KindConflict
	// KindDependency marks an external store/bus/LLM/embedding-provider failure.
	KindDependency
)

// Error is an apperr-classified error, optionally wrapping an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Dependency wraps err as a KindDependency error with additional context.
func Dependency(context string, err error) *Error {
	return &Error{Kind: KindDependency, Message: context, Err: err}
}

// HTTPStatus maps err to the status code its Kind requires. Unclassified
// errors map to 500, matching the Dependency default.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
