// Package errors defines the typed error kinds used across the Integrity
// Spine and their mapping onto HTTP status codes and retry policy.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error kinds enumerated in the error handling design.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindUnauthenticated      Kind = "unauthenticated"
	KindPermissionDenied     Kind = "permission_denied"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindPreconditionRequired Kind = "precondition_required"
	KindResourceExhausted    Kind = "resource_exhausted"
	KindInternal             Kind = "internal"
	KindServiceUnavailable   Kind = "service_unavailable"
	KindTimeout              Kind = "timeout"
)

// Error is a typed-kind error carrying an optional machine-readable code
// (e.g. "dissolve_auth_required") distinct from the broad Kind, plus
// structured detail safe to surface to callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Detail  map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to the status codes from §7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPreconditionRequired:
		return http.StatusPreconditionRequired
	case KindResourceExhausted:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func new(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NewValidationError(msg string) *Error       { return new(KindValidation, "", msg) }
func NewUnauthenticated(msg string) *Error       { return new(KindUnauthenticated, "", msg) }
func NewPermissionDenied(msg string) *Error      { return new(KindPermissionDenied, "", msg) }
func NewNotFound(msg string) *Error              { return new(KindNotFound, "", msg) }
func NewConflict(msg string) *Error              { return new(KindConflict, "", msg) }
func NewResourceExhausted(msg string) *Error     { return new(KindResourceExhausted, "", msg) }
func NewServiceUnavailable(msg string) *Error    { return new(KindServiceUnavailable, "", msg) }
func NewTimeout(msg string) *Error               { return new(KindTimeout, "", msg) }
func NewInternal(msg string) *Error              { return new(KindInternal, "", msg) }

// NewPrecondition builds a precondition_required error carrying a specific
// machine-readable code, e.g. "dissolve_auth_required", "burn_proof_required",
// "burn_proof_invalid".
func NewPrecondition(code, msg string) *Error {
	return new(KindPreconditionRequired, code, msg)
}

// Wrap attaches cause to err for %w-style unwrapping while preserving Kind.
func Wrap(err *Error, cause error) *Error {
	err.cause = cause
	return err
}

// As extracts a *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether a failed call against a downstream
// dependency should be retried per §7's propagation policy: only
// service_unavailable, timeout, or (by convention, at the caller) a
// wrapped 5xx response.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindServiceUnavailable || k == KindTimeout
}
