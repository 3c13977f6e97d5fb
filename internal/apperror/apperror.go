// Package apperror defines the failure kinds returned by use cases and their
// fixed mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the stable category label exposed to clients in the "error" field.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountLocked      Kind = "account_locked"
	KindAccountDeactivated Kind = "account_deactivated"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindRateLimited        Kind = "rate_limited"
	KindInternal           Kind = "internal"
)

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a typed domain failure.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	// RetryAt is set for failures that clear at a known instant (lockout, throttle).
	RetryAt time.Time
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrAccountLocked      = &Error{Kind: KindAccountLocked}
	ErrAccountDeactivated = &Error{Kind: KindAccountDeactivated}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrInternal           = &Error{Kind: KindInternal}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Conflict(message string) *Error { return New(KindConflict, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "Invalid email or password")
}

func AccountDeactivated() *Error {
	return New(KindAccountDeactivated, "Account has been deactivated")
}

func AccountLocked(until time.Time) *Error {
	return &Error{
		Kind:    KindAccountLocked,
		Message: "Account temporarily locked due to multiple failed login attempts",
		RetryAt: until,
	}
}

func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Not authenticated"
	}
	return New(KindUnauthenticated, message)
}

func RateLimited(retryAt time.Time) *Error {
	return &Error{Kind: KindRateLimited, Message: "Too many requests", RetryAt: retryAt}
}

// Validation builds a validation failure from field details.
func Validation(details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid request data", Details: details}
}

// Field is shorthand for a single-field validation failure.
func Field(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

// From converts any error into an *Error; unknown errors become internal
// with the original kept as cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, KindInternal, "Internal server error")
}
