// Package apperrors defines the HTTP-facing error taxonomy shared by every
// handler. Every error carries an HTTP status and a single human-readable
// detail message, rendered as {"detail": "..."} to match the session and
// permission middleware's existing error shape.
package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is an application error with an associated HTTP status.
type Error struct {
	Status int
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Detail + ": " + e.cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

func new_(status int, detail string) *Error {
	return &Error{Status: status, Detail: detail}
}

func NotFound(detail string) *Error            { return new_(http.StatusNotFound, detail) }
func BadRequest(detail string) *Error          { return new_(http.StatusBadRequest, detail) }
func Unauthorized(detail string) *Error        { return new_(http.StatusUnauthorized, detail) }
func Forbidden(detail string) *Error           { return new_(http.StatusForbidden, detail) }
func Conflict(detail string) *Error            { return new_(http.StatusConflict, detail) }
func ServiceUnavailable(detail string) *Error  { return new_(http.StatusServiceUnavailable, detail) }
func BadGateway(detail string) *Error          { return new_(http.StatusBadGateway, detail) }
func Internal(detail string) *Error            { return new_(http.StatusInternalServerError, detail) }

// Wrap attaches a lower-level cause to an Error without changing its
// externally visible detail message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Detail: e.Detail, cause: cause}
}

// As extracts an *Error from err, or returns a generic 500 Internal if err
// is not already one.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error").Wrap(err)
}

// Write renders err as a {"detail": "..."} JSON response with the
// appropriate status code.
func Write(w http.ResponseWriter, err error) {
	appErr := As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": appErr.Detail})
}

// WriteDetail writes a bare status/detail pair without wrapping an error,
// for call sites that don't have (or need) an *Error value.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
