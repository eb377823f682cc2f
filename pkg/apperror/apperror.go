// Package apperror defines the domain error taxonomy. Every error carries the
// HTTP status it should be rendered with.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error with an HTTP status and a client-safe message.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus reports the status code the error renders with.
func (e *Error) HTTPStatus() int { return e.StatusCode }

// New builds an Error with the given status and message.
func New(status int, format string, args ...interface{}) *Error {
	return &Error{StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, format, args...)
}

func BadRequest(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, format, args...)
}

// Internal wraps an unexpected failure; the cause is logged, never rendered.
func Internal(err error, message string) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Message: message, Err: err}
}

// StatusOf returns the status carried by err, or 500 when err is not an *Error.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Is reports whether err is an *Error with the given status.
func Is(err error, status int) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.StatusCode == status
}
