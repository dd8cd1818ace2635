package dblock

import "encoding/binary"

// logHeaderSize is the fixed header at the start of a log-format block:
// [used:4][count:4][firstOff:4][lastOff:4]. Offsets are absolute byte
// offsets into block, or logNone if the map is empty.
const logHeaderSize = 16
const logNone = 0xFFFFFFFF

// LogMap is an append-only, mostly-unsorted block map. Lookups are linear
// scans; writes are O(1) amortized (append at the tail) except when the
// key lands outside the current [first,last] range, which updates the
// tracked edge offsets in O(1) too. Grounded on spec.md §4.3's "log" format
// and dblock-log-map.c's append-then-linear-scan design.
type LogMap struct {
	block []byte
}

func NewLogMap(block []byte) *LogMap { return &LogMap{block: block} }

func (m *LogMap) Init(block []byte) {
	m.block = block
	binary.LittleEndian.PutUint32(block[0:4], logHeaderSize)
	binary.LittleEndian.PutUint32(block[4:8], 0)
	binary.LittleEndian.PutUint32(block[8:12], logNone)
	binary.LittleEndian.PutUint32(block[12:16], logNone)
}

func (m *LogMap) used() uint32      { return binary.LittleEndian.Uint32(m.block[0:4]) }
func (m *LogMap) setUsed(v uint32)  { binary.LittleEndian.PutUint32(m.block[0:4], v) }
func (m *LogMap) count() uint32     { return binary.LittleEndian.Uint32(m.block[4:8]) }
func (m *LogMap) setCount(v uint32) { binary.LittleEndian.PutUint32(m.block[4:8], v) }
func (m *LogMap) firstOff() uint32  { return binary.LittleEndian.Uint32(m.block[8:12]) }
func (m *LogMap) setFirstOff(v uint32) {
	binary.LittleEndian.PutUint32(m.block[8:12], v)
}
func (m *LogMap) lastOff() uint32 { return binary.LittleEndian.Uint32(m.block[12:16]) }
func (m *LogMap) setLastOff(v uint32) {
	binary.LittleEndian.PutUint32(m.block[12:16], v)
}

func (m *LogMap) recordAt(off uint32) (key, value []byte, next int, ok bool) {
	return decodeRecord(m.block, int(off))
}

func (m *LogMap) Lookup(key []byte) ([]byte, bool) {
	off := uint32(logHeaderSize)
	for off < m.used() {
		k, v, next, ok := m.recordAt(off)
		if !ok {
			break
		}
		if bytesEqual(k, key) {
			return v, true
		}
		off = uint32(next)
	}
	return nil, false
}

func (m *LogMap) FirstKey() ([]byte, bool) {
	if m.firstOff() == logNone {
		return nil, false
	}
	k, _, _, ok := m.recordAt(m.firstOff())
	return k, ok
}

func (m *LogMap) LastKey() ([]byte, bool) {
	if m.lastOff() == logNone {
		return nil, false
	}
	k, _, _, ok := m.recordAt(m.lastOff())
	return k, ok
}

func (m *LogMap) Seek(pos SeekPos, key []byte) (KV, bool) {
	switch pos {
	case SeekBegin:
		if m.firstOff() == logNone {
			return KV{}, false
		}
		k, v, _, ok := m.recordAt(m.firstOff())
		return KV{Key: k, Value: v}, ok
	case SeekEnd:
		if m.lastOff() == logNone {
			return KV{}, false
		}
		k, v, _, ok := m.recordAt(m.lastOff())
		return KV{Key: k, Value: v}, ok
	}

	var best KV
	found := false
	off := uint32(logHeaderSize)
	for off < m.used() {
		k, v, next, ok := m.recordAt(off)
		if !ok {
			break
		}
		if seekMatch(pos, k, key) && (!found || seekBetter(pos, k, best.Key)) {
			best = KV{Key: k, Value: v}
			found = true
		}
		off = uint32(next)
	}
	return best, found
}

// seekMatch reports whether candidate key k satisfies the relation pos
// against the sought key.
func seekMatch(pos SeekPos, k, key []byte) bool {
	c := bytesCompare(k, key)
	switch pos {
	case SeekLT:
		return c < 0
	case SeekLE:
		return c <= 0
	case SeekGT:
		return c > 0
	case SeekGE:
		return c >= 0
	case SeekEQ:
		return c == 0
	}
	return false
}

// seekBetter reports whether candidate k is a tighter match than best for
// the given relation (closest to the sought key wins: largest for
// LT/LE, smallest for GT/GE/EQ).
func seekBetter(pos SeekPos, k, best []byte) bool {
	c := bytesCompare(k, best)
	switch pos {
	case SeekLT, SeekLE:
		return c > 0
	default:
		return c < 0
	}
}

func (m *LogMap) append(key, value []byte) error {
	size := recordSize(key, value)
	if int(m.used())+size > len(m.block) {
		return ErrNoSpace
	}
	off := m.used()
	// encodeRecord's appends write directly into m.block's backing array
	// since capacity was already verified to cover size.
	encodeRecord(m.block[off:off], key, value)
	m.setUsed(off + uint32(size))
	m.setCount(m.count() + 1)

	if m.firstOff() == logNone || bytesCompare(key, mustKey(m, m.firstOff())) < 0 {
		m.setFirstOff(off)
	}
	if m.lastOff() == logNone || bytesCompare(key, mustKey(m, m.lastOff())) > 0 {
		m.setLastOff(off)
	}
	return nil
}

func mustKey(m *LogMap, off uint32) []byte {
	k, _, _, _ := m.recordAt(off)
	return k
}

func (m *LogMap) Insert(key, value []byte) error  { return m.append(key, value) }
func (m *LogMap) Append(key, value []byte) error  { return m.append(key, value) }
func (m *LogMap) Prepend(key, value []byte) error { return m.append(key, value) }

// Remove is unsupported on the append-only log format: the original marks
// tombstones via a higher-level compaction pass rather than in-place
// removal, which this package leaves to the object engine's compaction
// path (not modeled here — see DESIGN.md).
func (m *LogMap) Remove(key []byte) error { return ErrNotImplementedOnLog }

// Replace appends a new record for key; the old record becomes dead space
// reclaimed on compaction, matching avl16e's replace semantics and the
// log format's append-only nature.
func (m *LogMap) Replace(key, value []byte) error { return m.append(key, value) }

func (m *LogMap) HasSpace(key, value []byte) bool {
	return int(m.used())+recordSize(key, value) <= len(m.block)
}

func (m *LogMap) MaxOverhead() int { return 1 + 8 + 8 }

func (m *LogMap) Stats() Stats {
	return Stats{
		Count:     int(m.count()),
		UsedBytes: int(m.used()),
		FreeBytes: len(m.block) - int(m.used()),
	}
}

var ErrNotImplementedOnLog = mapError("remove not supported on log map; compact instead")

func bytesEqual(a, b []byte) bool { return bytesCompare(a, b) == 0 }

func bytesCompare(a, b []byte) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}
