// Package apperror defines the application's error taxonomy.
//
// Every error a service returns either IS one of these sentinels or WRAPS one,
// so callers branch with errors.Is and never compare message strings:
//
//	if errors.Is(err, apperror.ErrInvalidInput) { ... }
//
// The HTTP layer (handler.writeError) is the only place that turns these into
// status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the caller is not authenticated, or presented bad
	// credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput is returned for a malformed share-link duration. It is
	// raised before any persistence call, so nothing was mutated.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistence marks a failure of the backing store. The prior state of
	// the record is still the effective state.
	ErrPersistence = errors.New("persistence failure")
)

// AppError is a typed error carrying a human-readable message.
type AppError struct {
	Err     error  // sentinel
	Message string // human-readable message, safe to show to clients
	Field   string // optional: field causing the error
	Cause   error  // optional: underlying error (never shown to clients)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidInput reports a rejected argument for an operation that must not
// mutate anything.
func InvalidInput(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or bad credentials.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Persistence wraps a storage failure. op names the operation for the message
// ("updating snippet visibility"); cause is kept for logs and errors.Is.
func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: op + " failed",
		Cause:   cause,
	}
}
