package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation / uniqueness classes. Use errors.As with *ValidationError or
	// *DuplicateError to get the details.
	ErrorValidation    = errors.New("validation error")
	ErrorAlreadyExists = errors.New("already exists")
)

// Auth errors. All of them match ErrorUnauthorized with errors.Is, so the
// boundary can collapse them into a single outcome while logs and metrics
// still see the precise kind.
var (
	ErrInvalidCredentials = &AuthError{msg: "incorrect username or password"}
	ErrInactiveUser       = &AuthError{msg: "inactive user"}

	ErrInvalidToken   = &AuthError{msg: "invalid token"}
	ErrTokenMalformed = &AuthError{msg: "malformed token"}
	ErrTokenSignature = &AuthError{msg: "token signature mismatch"}
	ErrTokenExpired   = &AuthError{msg: "token expired"}
)

// AuthError is a credential or session failure.
type AuthError struct {
	msg string
}

func (e *AuthError) Error() string { return e.msg }

// Is reports AuthError as a member of the ErrorUnauthorized class.
func (e *AuthError) Is(target error) bool { return target == ErrorUnauthorized }

// ValidationError reports malformed input or a policy violation. Reason is
// safe to show to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// DuplicateError reports a uniqueness conflict on Field ("username" or "email").
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	switch e.Field {
	case "username":
		return "username already registered"
	case "email":
		return "email already registered"
	default:
		return "already exists"
	}
}

func (e *DuplicateError) Is(target error) bool { return target == ErrorAlreadyExists }

// DuplicateField extracts the conflicting field name from err, if any.
func DuplicateField(err error) (string, bool) {
	var de *DuplicateError
	if errors.As(err, &de) {
		return de.Field, true
	}
	return "", false
}
