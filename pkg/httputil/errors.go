package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API error and determines its HTTP status
type Kind string

const (
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindValidation   Kind = "VALIDATION_ERROR"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// genericInternalMessage is the only text a client ever sees for an internal failure
const genericInternalMessage = "internal server error"

// Status returns the HTTP status code for the kind.
// Conflict maps to 400: clients of the admin API treat it as a rejected request.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified API error. Message is safe to return to clients;
// Cause is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates a classified error
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a classified error with a formatted message
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err as an internal error. Returns nil when err is nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Message: message, Cause: err}
}

// Sentinels for errors.Is comparisons against a kind
var (
	ErrUnauthorized = NewError(KindUnauthorized, "unauthorized")
	ErrForbidden    = NewError(KindForbidden, "forbidden")
	ErrValidation   = NewError(KindValidation, "validation failed")
	ErrNotFound     = NewError(KindNotFound, "not found")
	ErrConflict     = NewError(KindConflict, "conflict")
	ErrRateLimited  = NewError(KindRateLimited, "too many requests")
	ErrInternal     = NewError(KindInternal, genericInternalMessage)
)

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// WriteAppError writes err as a JSON {error} payload. Internal and unclassified
// errors always produce the generic message; their details never leave the process.
func WriteAppError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		WriteErrorMessage(w, http.StatusInternalServerError, genericInternalMessage)
		return
	}
	WriteErrorMessage(w, e.Kind.Status(), e.Message)
}
