// Package wire implements the RPC framing layer: a self-describing frame
// header followed by fwd/body/data payload sections, a Reader state machine
// that incrementally parses frames out of a byte stream, and a Writer that
// accumulates an outgoing frame over internal/dbuf using mark-then-patch for
// the length fields. Grounded on spec.md §4.8/§6 and the original
// zcl/eloop/ipc/ipc-msg.c header diagram; the manual little-endian
// field-by-field layout follows the teacher's internal/uapi/marshal.go
// idiom (Marshal/Unmarshal dispatch-by-type over explicit byte offsets)
// rather than a general-purpose codec.
package wire

import "github.com/raleighsl/raleighsl/internal/varint"

// PackageType is the frame's top-level kind, packed into the high 4 bits of
// the first head byte.
type PackageType uint8

const (
	Request  PackageType = 1
	Response PackageType = 2
	Push     PackageType = 3
)

func (t PackageType) String() string {
	switch t {
	case Request:
		return "request"
	case Response:
		return "response"
	case Push:
		return "push"
	default:
		return "unknown"
	}
}

// Header is the decoded form of a frame's fixed fields, preceding the
// fwd/body/data payload sections.
type Header struct {
	PkgType    PackageType
	MsgType    uint32
	MsgID      uint64
	FwdLength  uint32
	BodyLength uint32
	DataLength uint32
}

// widths holds the per-field byte widths packed into the two head bytes.
// msgType and msgID are always at least 1 byte wide (the head packs
// width-1); fwd/body/data are width-directly and may be 0, meaning the
// field is entirely absent on the wire and its length is implicitly 0.
type widths struct {
	msgType int
	msgID   int
	fwd     int
	body    int
	data    int
}

// fieldsLen is the number of bytes occupied by the five variable-width
// fields that follow the two head bytes.
func (w widths) fieldsLen() int {
	return w.msgType + w.msgID + w.fwd + w.body + w.data
}

// Limits on the width-directly fields imposed by how many bits the head
// bytes devote to them (2 bits for fwd/body => 0..3, 3 bits for data =>
// 0..7).
const (
	maxFwdWidth  = 3
	maxBodyWidth = 3
	maxDataWidth = 7
	maxMsgTypeW  = 4 // 2 bits, width-1 => 1..4
	maxMsgIDW    = 8 // 3 bits, width-1 => 1..8
)

// decodeHeadBytes splits the two packed head bytes into a package type and
// field widths, per spec.md §4.8/§6:
//
//	byte0: [pkg_type:4 | msg_type_bytes-1:2 | fwd_length_bytes:2]
//	byte1: [msg_id_bytes-1:3 | body_length_bytes:2 | data_length_bytes:3]
func decodeHeadBytes(b0, b1 byte) (PackageType, widths) {
	var w widths
	pkgType := PackageType(b0 >> 4)
	w.msgType = int((b0>>2)&0x3) + 1
	w.fwd = int(b0 & 0x3)
	w.msgID = int((b1>>5)&0x7) + 1
	w.body = int((b1 >> 3) & 0x3)
	w.data = int(b1 & 0x7)
	return pkgType, w
}

// encodeHeadBytes is the inverse of decodeHeadBytes.
func encodeHeadBytes(pkgType PackageType, w widths) (byte, byte) {
	b0 := byte(pkgType)<<4 | byte(w.msgType-1)<<2 | byte(w.fwd)
	b1 := byte(w.msgID-1)<<5 | byte(w.body)<<3 | byte(w.data)
	return b0, b1
}

// ErrFieldTooWide is returned by EncodeHeader when a length field does not
// fit in the bit budget the head bytes allot it (fwd/body: 3 bytes max,
// data: 7 bytes max — the latter is never actually a limit for a uint32).
type ErrFieldTooWide struct {
	Field string
}

func (e *ErrFieldTooWide) Error() string {
	return "wire: " + e.Field + " length too wide to encode"
}

// computeWidths derives the minimal-width encoding widths for h's fields.
func computeWidths(h Header) (widths, error) {
	var w widths
	w.msgType = varint.SizeUint(uint64(h.MsgType))
	if w.msgType > maxMsgTypeW {
		return w, &ErrFieldTooWide{Field: "msg_type"}
	}
	w.msgID = varint.SizeUint(h.MsgID)
	if w.msgID > maxMsgIDW {
		return w, &ErrFieldTooWide{Field: "msg_id"}
	}
	if h.FwdLength == 0 {
		w.fwd = 0
	} else {
		w.fwd = varint.SizeUint(uint64(h.FwdLength))
		if w.fwd > maxFwdWidth {
			return w, &ErrFieldTooWide{Field: "fwd_length"}
		}
	}
	if h.BodyLength == 0 {
		w.body = 0
	} else {
		w.body = varint.SizeUint(uint64(h.BodyLength))
		if w.body > maxBodyWidth {
			return w, &ErrFieldTooWide{Field: "body_length"}
		}
	}
	if h.DataLength == 0 {
		w.data = 0
	} else {
		w.data = varint.SizeUint(uint64(h.DataLength))
		if w.data > maxDataWidth {
			return w, &ErrFieldTooWide{Field: "data_length"}
		}
	}
	return w, nil
}

// HeadLen returns the total size in bytes of h's encoded header (the two
// packed head bytes plus its variable-width fields), or an error if a field
// doesn't fit the wire's bit budget.
func HeadLen(h Header) (int, error) {
	w, err := computeWidths(h)
	if err != nil {
		return 0, err
	}
	return 2 + w.fieldsLen(), nil
}

// EncodeHeader writes h's encoded header into buf, which must be exactly
// HeadLen(h) bytes long.
func EncodeHeader(buf []byte, h Header) error {
	w, err := computeWidths(h)
	if err != nil {
		return err
	}
	need := 2 + w.fieldsLen()
	if len(buf) != need {
		panic("wire: EncodeHeader buffer size mismatch")
	}
	buf[0], buf[1] = encodeHeadBytes(h.PkgType, w)
	off := 2
	varint.EncodeUint(buf[off:], w.msgType, uint64(h.MsgType))
	off += w.msgType
	varint.EncodeUint(buf[off:], w.msgID, h.MsgID)
	off += w.msgID
	if w.fwd > 0 {
		varint.EncodeUint(buf[off:], w.fwd, uint64(h.FwdLength))
		off += w.fwd
	}
	if w.body > 0 {
		varint.EncodeUint(buf[off:], w.body, uint64(h.BodyLength))
		off += w.body
	}
	if w.data > 0 {
		varint.EncodeUint(buf[off:], w.data, uint64(h.DataLength))
		off += w.data
	}
	return nil
}

// decodeFields parses the fields buffer (everything after the two head
// bytes, of length w.fieldsLen()) into a Header.
func decodeFields(pkgType PackageType, w widths, fields []byte) Header {
	h := Header{PkgType: pkgType}
	off := 0
	h.MsgType = uint32(varint.DecodeUint(fields[off:], w.msgType))
	off += w.msgType
	h.MsgID = varint.DecodeUint(fields[off:], w.msgID)
	off += w.msgID
	if w.fwd > 0 {
		h.FwdLength = uint32(varint.DecodeUint(fields[off:], w.fwd))
		off += w.fwd
	}
	if w.body > 0 {
		h.BodyLength = uint32(varint.DecodeUint(fields[off:], w.body))
		off += w.body
	}
	if w.data > 0 {
		h.DataLength = uint32(varint.DecodeUint(fields[off:], w.data))
		off += w.data
	}
	return h
}
