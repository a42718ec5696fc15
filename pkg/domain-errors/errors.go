// Package domainerrors provides coded errors for domain and validation
// failures. Stores return sentinel errors (pkg/platform/sentinel); services
// translate those facts into coded errors here so transport can map them to
// HTTP statuses without inspecting business logic.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for callers and for HTTP translation.
type Code string

const (
	// CodeValidation covers amounts out of bounds and malformed parameters.
	CodeValidation Code = "validation"
	// CodeInvalidInput covers unparseable external input at the boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized covers callers lacking the custodian capability or an
	// investment they claim to own.
	CodeUnauthorized Code = "unauthorized"
	// CodeConflict covers duplicate active investments.
	CodeConflict Code = "conflict"
	// CodeInvalidState covers operations attempted in the wrong cycle state.
	CodeInvalidState Code = "invalid_state"
	// CodeAmountMismatch covers custodian-supplied funds that do not equal
	// the exact amount an operation requires.
	CodeAmountMismatch Code = "amount_mismatch"
	// CodeNotFound covers lookups of records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeOverflow covers accounting arithmetic that would wrap.
	CodeOverflow Code = "overflow"
	// CodeTransferFailed covers value transfers that did not complete.
	CodeTransferFailed Code = "transfer_failed"
	// CodeInternal covers unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error carries a classification code alongside the message. The wrapped
// cause, when present, stays reachable through errors.Unwrap.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// is not a coded error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should
// return. Keeping the mapping here ensures every handler translates errors
// the same way.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeOverflow:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeConflict, CodeInvalidState, CodeAmountMismatch:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
