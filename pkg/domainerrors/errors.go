// Package domainerrors defines the machine-readable error codes the engine
// returns to callers. Stores return sentinel errors (pkg/platform/sentinel);
// services translate them into these coded errors; the HTTP layer maps codes
// to status lines without ever leaking infrastructure messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure. The string value is the wire format.
type Code string

const (
	// CodeNotFound covers both unknown ids and ids the caller may not read;
	// the two are indistinguishable outward to avoid existence leakage.
	CodeNotFound Code = "not_found"

	// CodeInvalidState signals a stale or conflicting transition. Retryable
	// after a re-fetch.
	CodeInvalidState Code = "invalid_state"

	// CodeForbidden signals a role or community-scope violation.
	CodeForbidden Code = "forbidden"

	// CodeValidationFailed signals bad input, e.g. a missing mandatory note
	// or a malformed payment reference.
	CodeValidationFailed Code = "validation_failed"

	// CodeUnauthorized signals a missing or unusable identity claim.
	CodeUnauthorized Code = "unauthorized"

	// CodeInternal covers unexpected infrastructure failures.
	CodeInternal Code = "internal"

	// CodeUnavailable signals a retryable persistence failure.
	CodeUnavailable Code = "unavailable"
)

// Error is a coded domain error. The message is safe to show to callers for
// every code except CodeInternal, which is rendered without detail.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error that keeps the underlying cause for logs while
// presenting only the message outward.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, wrapped: cause}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
