package raleighsl

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of error categories surfaced at the object API.
type ErrorCode string

const (
	ErrCodeNone                 ErrorCode = "none"
	ErrCodeNoMemory             ErrorCode = "no memory"
	ErrCodeNotImplemented       ErrorCode = "not implemented"
	ErrCodeTxnLockedOperation   ErrorCode = "txn locked operation"
	ErrCodeDataNoItems          ErrorCode = "data no items"
	ErrCodeDataCAS              ErrorCode = "data cas mismatch"
	ErrCodeNumberDivModByZero   ErrorCode = "number divmod by zero"
)

// Error is a structured raleighsl error with context, mirroring the
// category/op/wrapped-error shape the object API surfaces.
type Error struct {
	Op     string    // operation that failed, e.g. "number.cas", "deque.pop"
	Object string    // object label involved, if any
	Code   ErrorCode // high-level error category
	Msg    string    // human-readable message
	Inner  error     // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Object != "" {
		return fmt.Sprintf("raleighsl: %s: %s (object=%s)", e.Op, msg, e.Object)
	}
	if e.Op != "" {
		return fmt.Sprintf("raleighsl: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("raleighsl: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError creates a structured error for the given operation/category.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewObjectError creates a structured error scoped to a specific object.
func NewObjectError(op, object string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Object: object, Code: code, Msg: msg}
}

// WrapError wraps an inner error with raleighsl operation context, preserving
// the category if the inner error is already a *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ue, ok := inner.(*Error); ok {
		return &Error{Op: op, Object: ue.Object, Code: ue.Code, Msg: ue.Msg, Inner: ue.Inner}
	}
	return &Error{Op: op, Code: ErrCodeNoMemory, Msg: inner.Error(), Inner: inner}
}

// Sentinel errors for errors.Is comparisons against well-known categories.
var (
	ErrNoMemory           = &Error{Code: ErrCodeNoMemory, Msg: string(ErrCodeNoMemory)}
	ErrNotImplemented     = &Error{Code: ErrCodeNotImplemented, Msg: string(ErrCodeNotImplemented)}
	ErrTxnLockedOperation = &Error{Code: ErrCodeTxnLockedOperation, Msg: string(ErrCodeTxnLockedOperation)}
	ErrDataNoItems        = &Error{Code: ErrCodeDataNoItems, Msg: string(ErrCodeDataNoItems)}
	ErrDataCAS            = &Error{Code: ErrCodeDataCAS, Msg: string(ErrCodeDataCAS)}
	ErrNumberDivModByZero = &Error{Code: ErrCodeNumberDivModByZero, Msg: string(ErrCodeNumberDivModByZero)}
)

// IsCode reports whether err carries the given error category.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
