// ABOUTME: Domain error type with stable codes for the protocol boundary
// ABOUTME: Errors carry a machine code plus a human message and optional cause

package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure. Codes are stable and are the
// only part of an error clients should branch on.
type Code string

const (
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeBadRequest       Code = "bad_request"
	CodeInvalidState     Code = "invalid_state"
	CodeSelfReference    Code = "self_reference"
	CodeDuplicateRequest Code = "duplicate_request"
	CodeAlreadyFriends   Code = "already_friends"
	CodeEmptyContent     Code = "empty_content"
	CodeAlreadyProcessed Code = "already_processed"
	CodeStorage          Code = "storage"
)

// Error is a domain error with a stable code. It is returned to callers as
// a structured acknowledgement rather than terminating the connection.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that records an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Storage wraps a store round-trip failure. These are the only errors
// surfaced to callers as retryable server faults.
func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Message: "storage failure", Err: err}
}

// CodeOf extracts the code from err, or CodeStorage if err is not a domain
// error (unknown failures are treated as server faults, never leaked raw).
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeStorage
}

// MessageOf extracts the human message from err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
