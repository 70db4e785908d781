// Package domainerrors defines the coded errors the service layer returns to
// transports. Stores speak sentinel errors (pkg/platform/sentinel); services
// translate them here and attach enough context (request id, donor id, current
// status) for callers to decide retry vs. abort.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are part of the API surface: handlers
// map them to HTTP statuses and clients branch on them.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeUnauthorized      Code = "unauthorized"
	CodeForbidden         Code = "forbidden"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeNotPending        Code = "not_pending"
	CodeInvalidTransition Code = "invalid_transition"
	CodeAlreadyFulfilled  Code = "already_fulfilled"
	CodeIneligible        Code = "ineligible"
	CodeInternal          Code = "internal"
)

// Error is a coded domain error with optional key/value context.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	wrapped error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps the underlying cause reachable via errors.Is/As while presenting
// a coded error to callers.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// With attaches a context field and returns the same error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = value
	return e
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches against the code so handlers can branch without type assertions.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeNotPending, CodeInvalidTransition, CodeAlreadyFulfilled:
		return http.StatusConflict
	case CodeIneligible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
