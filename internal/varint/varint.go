// Package varint implements the two variable-width integer codecs the wire
// framing and dblock record formats are built on: a length-prefixed
// little-endian uint codec, and a delta-packed run codec for compact sorted
// indices.
package varint

// SizeUint returns the minimum number of bytes k in [1,8] such that
// v < 256^k, matching z_uintN_size in the original coding layer.
func SizeUint(v uint64) int {
	k := 1
	for v >= 256 {
		v >>= 8
		k++
	}
	return k
}

// EncodeUint writes the low k bytes of v to buf in little-endian order.
// Panics if buf is shorter than k or k is outside [1,8].
func EncodeUint(buf []byte, k int, v uint64) {
	for i := 0; i < k; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
}

// DecodeUint reads k little-endian bytes from buf and returns the value.
func DecodeUint(buf []byte, k int) uint64 {
	var v uint64
	for i := k - 1; i >= 0; i-- {
		v = (v << 8) | uint64(buf[i])
	}
	return v
}

// AppendUint appends the minimal-width encoding of v to buf and returns the
// new slice along with the width used.
func AppendUint(buf []byte, v uint64) ([]byte, int) {
	k := SizeUint(v)
	start := len(buf)
	buf = append(buf, make([]byte, k)...)
	EncodeUint(buf[start:], k, v)
	return buf, k
}
