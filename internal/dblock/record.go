package dblock

import "github.com/raleighsl/raleighsl/internal/varint"

// Record head byte: [kwidth-1:3 | vwidth-1:3 | reserved:2]. kwidth/vwidth
// are the minimal little-endian byte widths (1..8) of the key/value
// lengths that follow, mirroring z_uintN_size's role in the original
// encoding without replicating its joint single-byte ksize/vsize packing
// (see DESIGN.md: this is a from-scratch byte layout, not a wire-compatible
// port of the C head-byte format).
func recordSize(key, value []byte) int {
	kw := varint.SizeUint(uint64(len(key)))
	vw := varint.SizeUint(uint64(len(value)))
	return 1 + kw + vw + len(key) + len(value)
}

// encodeRecord appends one record to buf and returns the new slice.
func encodeRecord(buf []byte, key, value []byte) []byte {
	kw := varint.SizeUint(uint64(len(key)))
	vw := varint.SizeUint(uint64(len(value)))
	head := byte(kw-1) | byte(vw-1)<<3
	buf = append(buf, head)
	buf, _ = varint.AppendUint(buf, uint64(len(key)))
	// AppendUint always picks the minimal width for the value, which
	// matches kw/vw computed above since both are derived from the same
	// SizeUint function.
	start := len(buf)
	buf = append(buf, make([]byte, vw)...)
	varint.EncodeUint(buf[start:], vw, uint64(len(value)))
	buf = append(buf, key...)
	buf = append(buf, value...)
	return buf
}

// decodeRecord reads one record starting at off and returns its key, value,
// and the offset immediately after the record.
func decodeRecord(block []byte, off int) (key, value []byte, next int, ok bool) {
	if off >= len(block) {
		return nil, nil, off, false
	}
	head := block[off]
	kw := int(head&0x07) + 1
	vw := int((head>>3)&0x07) + 1
	pos := off + 1
	if pos+kw+vw > len(block) {
		return nil, nil, off, false
	}
	klen := int(varint.DecodeUint(block[pos:], kw))
	pos += kw
	vlen := int(varint.DecodeUint(block[pos:], vw))
	pos += vw
	if pos+klen+vlen > len(block) {
		return nil, nil, off, false
	}
	key = block[pos : pos+klen]
	pos += klen
	value = block[pos : pos+vlen]
	pos += vlen
	return key, value, pos, true
}
