// Package objects implements the built-in object types (C12): number,
// deque, flow, counter. Each type is a Plug (internal/objectengine) plus a
// membuf struct holding its type-private state, and each write operation
// takes a *txn.Txn (nil meaning auto-commit) per spec.md §4.5-§4.7.
//
// Grounded on original_source/src/raleighsl/objects/{number,deque,flow,
// counter}/*.c, read directly since spec.md §4.7 only summarizes their
// behavior.
package objects

// Errors returned by object operations. These are local sentinels, not
// *raleighsl.Error, for the same reason internal/dblock's are local:
// mapping to the root package's closed ErrorCode set is the caller's job
// (internal/wire's request dispatcher), via raleighsl.WrapError, which
// keeps this package free of an import cycle back to the root package.
var (
	ErrTxnLocked      = opError("object is locked by another transaction")
	ErrDataNoItems    = opError("no items available")
	ErrDataCAS        = opError("compare-and-swap mismatch")
	ErrDivByZero      = opError("division/modulo by zero")
	ErrNotImplemented = opError("not implemented")
)

type opError string

func (e opError) Error() string { return string(e) }
