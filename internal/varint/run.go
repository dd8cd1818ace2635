package varint

// EncodeRun packs a sequence of u64 deltas into one block using a compact
// head byte: [fixw:1 | width-1:3 | unused:1 | ndeltas-1:3]; the unused bit is
// always 0. Blocks hold at
// most 8 deltas. When every delta in the block fits the same byte width the
// block is fixed-width (fixw=1) and deltas follow the head packed back to
// back at that width. Otherwise each delta keeps its own width, recorded in
// a per-delta width table (3 bits/entry, packed LSB-first within each byte)
// immediately after the head.
//
// This is a from-scratch reimplementation of the original's delta-packed
// run codec (see DESIGN.md) kept at a fixed 3-bit width-table granularity
// rather than the original's 1/2/3-bit adaptive table — a compression-ratio
// simplification that does not affect the round-trip invariant callers rely
// on (spec.md §8).
func EncodeRun(buf []byte, deltas []uint64) []byte {
	for len(deltas) > 0 {
		n := len(deltas)
		if n > 8 {
			n = 8
		}
		chunk := deltas[:n]
		deltas = deltas[n:]

		widths := make([]int, n)
		maxWidth := 1
		minWidth := 8
		for i, d := range chunk {
			w := SizeUint(d)
			widths[i] = w
			if w > maxWidth {
				maxWidth = w
			}
			if w < minWidth {
				minWidth = w
			}
		}

		fixw := minWidth == maxWidth
		var head byte
		head |= byte(n-1) & 0x07
		if fixw {
			head |= 0x80
			head |= byte(maxWidth-1) << 4
		} else {
			head |= byte(maxWidth-1) << 4
		}
		buf = append(buf, head)

		if fixw {
			for _, d := range chunk {
				buf, _ = AppendUint(buf, d)
			}
			continue
		}

		// width table: 3 bits per entry, LSB-first packing within each byte.
		tableBits := n * 3
		tableBytes := (tableBits + 7) / 8
		tableStart := len(buf)
		buf = append(buf, make([]byte, tableBytes)...)
		for i, w := range widths {
			code := byte(w - 1)
			bitOff := i * 3
			byteIdx := tableStart + bitOff/8
			shift := uint(bitOff % 8)
			// write up to 3 bits, possibly spanning two bytes
			buf[byteIdx] |= code << shift
			if shift > 5 {
				buf[byteIdx+1] |= code >> (8 - shift)
			}
		}
		for i, d := range chunk {
			w := widths[i]
			start := len(buf)
			buf = append(buf, make([]byte, w)...)
			EncodeUint(buf[start:], w, d)
		}
	}
	return buf
}

// DecodeRun decodes count deltas starting at buf, returning the deltas and
// the number of bytes consumed.
func DecodeRun(buf []byte, count int) ([]uint64, int) {
	out := make([]uint64, 0, count)
	pos := 0
	for len(out) < count {
		head := buf[pos]
		pos++
		fixw := head&0x80 != 0
		width := int((head&0x70)>>4) + 1
		n := int(head&0x07) + 1

		if fixw {
			for i := 0; i < n; i++ {
				out = append(out, DecodeUint(buf[pos:], width))
				pos += width
			}
			continue
		}

		tableBits := n * 3
		tableBytes := (tableBits + 7) / 8
		table := buf[pos : pos+tableBytes]
		pos += tableBytes
		for i := 0; i < n; i++ {
			bitOff := i * 3
			byteIdx := bitOff / 8
			shift := uint(bitOff % 8)
			var code byte
			code = (table[byteIdx] >> shift) & 0x07
			if shift > 5 {
				code |= (table[byteIdx+1] << (8 - shift)) & 0x07
			}
			w := int(code) + 1
			out = append(out, DecodeUint(buf[pos:], w))
			pos += w
		}
	}
	return out, pos
}
