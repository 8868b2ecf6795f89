// Package domainerrors provides the coded error type every service returns.
// Codes form a small closed enumeration surfaced to callers as typed failures;
// transport layers map them to HTTP statuses without inspecting messages.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate those into coded errors at the domain boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class. Values are wire-stable.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"

	// Escrow wire codes. These mirror the contract's published error set and
	// must not be renamed.
	CodeNegativeAmount           Code = "negative_amount"
	CodeTimePredicateUnfulfilled Code = "time_predicate_unfulfilled"
	CodeNotAuthorizedToWithdraw  Code = "not_authorized_to_withdraw"
	CodeNoReceiptsFound          Code = "no_receipts_found"
)

// Error carries a code, a human-readable message, and an optional cause.
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

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from a coded error; empty for foreign errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status. The switch is exhaustive over
// the enumeration; an unlisted code is a programming error and maps to 500.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotAuthorizedToWithdraw:
		return http.StatusForbidden
	case CodeNotFound, CodeNoReceiptsFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeNegativeAmount:
		return http.StatusUnprocessableEntity
	case CodeTimePredicateUnfulfilled:
		return http.StatusPreconditionFailed
	case CodeInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
