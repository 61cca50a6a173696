// Package handler contains the HTTP handlers. A handler parses the request,
// calls one service method and writes the response; business rules live in
// internal/service.
package handler

// Every error response from the API has the same shape:
//
//	{"error": "not_found", "message": "snippet not found with id abc123"}
//
// so the frontend can parse failures without caring about the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/executor"
	"github.com/sakif/snippet-vault/internal/service"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable, e.g. "not_found"
	Message string `json:"message"`         // human-readable
	Field   string `json:"field,omitempty"` // input field at fault, if any
}

// writeJSON sets headers, then the status, then the body. Headers changed
// after the first Write are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are gone already, all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error chain to a status code and error type. errors.Is
// walks the chain, so a sentinel wrapped in an AppError wrapped by
// fmt.Errorf still matches.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, executor.ErrUnsupportedLanguage):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrPersistence):
		return http.StatusServiceUnavailable, "persistence_failure"
	case errors.Is(err, service.ErrExecutorDisabled):
		return http.StatusServiceUnavailable, "executor_disabled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to its HTTP status and writes the standard
// body. Only AppError messages and a few known sentinels reach the client;
// anything else becomes a generic 500 so SQL or file paths never leak.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := errorStatus(err)

	resp := ErrorResponse{Error: errorType, Message: "An internal error occurred"}

	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	case status != http.StatusInternalServerError:
		resp.Message = sentinelMessage(err, status)
	}

	writeJSON(w, status, resp)
}

func sentinelMessage(err error, status int) string {
	switch {
	case errors.Is(err, service.ErrExecutorDisabled):
		return service.ErrExecutorDisabled.Error()
	case errors.Is(err, executor.ErrUnsupportedLanguage):
		return "this language cannot be run"
	default:
		return http.StatusText(status)
	}
}
