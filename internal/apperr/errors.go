// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; the HTTP layer turns the Kind into a status
// code and a machine readable code in the response envelope.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindExpired              Kind = "expired"
	KindOutOfStock           Kind = "out_of_stock"
	KindInsufficientStock    Kind = "insufficient_stock"
	KindConflict             Kind = "conflict"
	KindExternalLookupFailed Kind = "external_lookup_failed"
	KindRateLimited          Kind = "rate_limited"
	KindUnexpected           Kind = "unexpected"
)

// Error carries a Kind, a client-facing message and an optional cause. The
// cause is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, apperr.NotFound("")) match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Unauthorized(msg string) *Error      { return newErr(KindUnauthorized, msg) }
func Forbidden(msg string) *Error         { return newErr(KindForbidden, msg) }
func NotFound(msg string) *Error          { return newErr(KindNotFound, msg) }
func Validation(msg string) *Error        { return newErr(KindValidation, msg) }
func Expired(msg string) *Error           { return newErr(KindExpired, msg) }
func OutOfStock(msg string) *Error        { return newErr(KindOutOfStock, msg) }
func InsufficientStock(msg string) *Error { return newErr(KindInsufficientStock, msg) }
func Conflict(msg string) *Error          { return newErr(KindConflict, msg) }
func RateLimited(msg string) *Error       { return newErr(KindRateLimited, msg) }

// ExternalLookupFailed wraps a failure of the checkout provider.
func ExternalLookupFailed(msg string, cause error) *Error {
	return &Error{Kind: KindExternalLookupFailed, Message: msg, Err: cause}
}

// Unexpected wraps an infrastructure failure the client cannot act on.
func Unexpected(msg string, cause error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: cause}
}

// KindOf reports the Kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
