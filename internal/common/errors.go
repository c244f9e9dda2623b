// Package common defines shared constants and error values used across
// server layers. Callers should use errors.Is to match these values.
package common

import "fmt"

// Code is the stable machine-readable error code carried by every externally
// visible error. The code is the contract surface; the message is diagnostic
// only.
type Code string

const (
	CodeNotAuthenticated Code = "not-authenticated"
	CodeNotFound         Code = "not-found"
	CodeDenied           Code = "denied"
	CodeUnsupported      Code = "unsupported"
	CodeValidation       Code = "validation"
	CodeConflict         Code = "conflict"
	CodeInternal         Code = "internal"
)

// Error pairs a Code with a human-readable message. Two Errors match under
// errors.Is when their codes are equal, so the sentinels below work as
// targets for wrapped errors created with WithMessage.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a new Error carrying the same code but a more specific
// diagnostic message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	// Authentication errors: missing/expired/invalid session or failed
	// signature verification.
	ErrNotAuthenticated = &Error{Code: CodeNotAuthenticated, Message: "not authenticated"}

	// Unknown subject/object. Surfaced guardedly to avoid enumeration.
	ErrNotFound = &Error{Code: CodeNotFound, Message: "not found"}

	// Authorization failure on operations that are allowed to reveal
	// object existence (listing-style endpoints).
	ErrDenied = &Error{Code: CodeDenied, Message: "permission denied"}

	// Requested algorithm tag has no available implementation.
	ErrUnsupported = &Error{Code: CodeUnsupported, Message: "unsupported algorithm"}

	// Structural validation errors, e.g. an auth tag mismatched with the
	// cipher mode.
	ErrValidation = &Error{Code: CodeValidation, Message: "validation error"}

	// Optimistic-concurrency conflict on versioned records.
	ErrVersionConflict = &Error{Code: CodeConflict, Message: "version conflict"}

	// Client-chosen identifier already in use.
	ErrDuplicate = &Error{Code: CodeConflict, Message: "duplicate id"}

	ErrInternal = &Error{Code: CodeInternal, Message: "internal error"}
)

// CodeOf extracts the machine-readable code from err, unwrapping as needed.
// Errors without a Code report CodeInternal.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeInternal
}
