package raleighsl

import "encoding/binary"

// MsgType values route a request frame to an object operation. This binds
// concrete operations to wire message types the way the generated stub
// layer would in production — spec.md §1 explicitly places that
// generation step out of this core's scope ("the generated stub layer
// translating typed requests to/from wire bytes"), so this is a minimal
// hand-written illustrative binding just complete enough to drive the
// object/txn engine end-to-end over the wire, not a claim to reimplement
// that layer.
type MsgType uint32

const (
	MsgCreateObject MsgType = iota + 1
	MsgCloseObject
	MsgUnlinkObject

	MsgTxnBegin
	MsgTxnCommit
	MsgTxnRollback

	MsgNumberGet
	MsgNumberSet
	MsgNumberAdd
	MsgNumberMul
	MsgNumberDiv
	MsgNumberCAS

	MsgCounterGet
	MsgCounterSet
	MsgCounterAdd
	MsgCounterMul
	MsgCounterCAS

	MsgDequePushFront
	MsgDequePushBack
	MsgDequePopFront
	MsgDequePopBack

	MsgFlowAppend
	MsgFlowSize
)

// Request body layouts (all fixed-width little-endian via encoding/binary,
// matching internal/wire's own header field style rather than a
// self-describing schema — there is no typed stub here to generate one):
//
//	MsgCreateObject:  fwd=label, body=[type_label_len:1][type_label bytes]
//	MsgCloseObject:   fwd=label
//	MsgUnlinkObject:  fwd=label
//	MsgTxnBegin:      (no body)
//	MsgTxnCommit:     body=[txn_id:8]
//	MsgTxnRollback:   body=[txn_id:8]
//	MsgNumber/CounterGet:  fwd=label, body=[txn_id:8] (0 = auto-commit)
//	MsgNumber/CounterSet/Add/Mul/Div: fwd=label, body=[txn_id:8][value:8]
//	MsgNumber/CounterCAS:  fwd=label, body=[txn_id:8][old:8][new:8]
//	MsgDequePush{Front,Back}: fwd=label, body=[txn_id:8], data=value bytes
//	MsgDequePop{Front,Back}:  fwd=label, body=[txn_id:8]
//	MsgFlowAppend:    fwd=label, body=[txn_id:8], data=bytes to append
//	MsgFlowSize:      fwd=label
//
// Responses always carry a one-byte status (0 == ErrCodeNone) as the first
// body byte; a non-zero status's meaning is in statusToCode below (errStatus
// in dispatch.go maps the other way), and any op-specific result follows the status byte in body, or in
// data for variable-length results (deque pop's value).
const (
	bodyTxnID = 8
)

func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getUint64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }
func putInt64(b []byte, v int64)   { binary.LittleEndian.PutUint64(b, uint64(v)) }
func getInt64(b []byte) int64      { return int64(binary.LittleEndian.Uint64(b)) }

// status codes occupy the response body's first byte.
const (
	statusNone uint8 = iota
	statusNoMemory
	statusNotImplemented
	statusTxnLocked
	statusDataNoItems
	statusDataCAS
	statusDivByZero
	statusUnknownObject
	statusUnknownTxn
	statusBadRequest
)

func statusToCode(s uint8) ErrorCode {
	switch s {
	case statusNone:
		return ErrCodeNone
	case statusNoMemory:
		return ErrCodeNoMemory
	case statusNotImplemented:
		return ErrCodeNotImplemented
	case statusTxnLocked:
		return ErrCodeTxnLockedOperation
	case statusDataNoItems:
		return ErrCodeDataNoItems
	case statusDataCAS:
		return ErrCodeDataCAS
	case statusDivByZero:
		return ErrCodeNumberDivModByZero
	default:
		return ErrCodeNoMemory
	}
}
