package service

import (
	"errors"
	"fmt"
)

// ErrorKind groups errors by how callers should react to them.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation_failed"
	KindBadRequest ErrorKind = "bad_request"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// Error is the error type returned across the composition boundary. Code is
// stable and machine readable; Details and Fields carry structured context.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]interface{}
	Fields  map[string][]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// with returns a copy of a sentinel carrying details.
func (e *Error) with(details map[string]interface{}) *Error {
	out := *e
	out.Details = details
	return &out
}

var (
	ErrWebsiteNotFound   = &Error{Kind: KindNotFound, Code: "website_not_found", Message: "website not found"}
	ErrPageNotFound      = &Error{Kind: KindNotFound, Code: "page_not_found", Message: "page not found"}
	ErrPartNotFound      = &Error{Kind: KindNotFound, Code: "part_not_found", Message: "part not found on this page"}
	ErrPlacementNotFound = &Error{Kind: KindNotFound, Code: "placement_not_found", Message: "placement not found"}
	ErrHasChildren       = &Error{Kind: KindConflict, Code: "has_children", Message: "container still has children"}
	ErrUnknownKeys       = &Error{Kind: KindConflict, Code: "unknown_keys", Message: "order contains keys that are not on this page"}
	ErrValidation        = &Error{Kind: KindValidation, Code: "validation_failed", Message: "validation failed"}
	ErrBadRequest        = &Error{Kind: KindBadRequest, Code: "bad_request", Message: "bad request"}
)

// badRequest builds a bad request error with a specific message.
func badRequest(code, message string) *Error {
	return &Error{Kind: KindBadRequest, Code: code, Message: message}
}

// validationFailed builds a validation error from field messages.
func validationFailed(fields map[string][]string) *Error {
	out := *ErrValidation
	out.Fields = fields
	return &out
}

// partNotFound names the key that was missing.
func partNotFound(key string) *Error {
	return ErrPartNotFound.with(map[string]interface{}{"part_key": key})
}

// internalError wraps a storage failure. The cause is kept for logs only.
func internalError(op string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return &Error{Kind: KindInternal, Code: "internal_error", Message: op + " failed", Cause: err}
}

// AsError extracts the *Error from err, wrapping foreign errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Cause: err}
}
