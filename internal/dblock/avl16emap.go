package dblock

import (
	"encoding/binary"

	"github.com/raleighsl/raleighsl/internal/intrusive"
)

// avl16eIndexStride is the index AVL's per-entry payload: a single 4-byte
// absolute offset into the data region (the original packs a 3-byte offset
// into an 8-byte node; this reimplementation keeps a full uint32 offset for
// simplicity at the cost of one byte/entry — see DESIGN.md).
const avl16eIndexStride = intrusive.Avl16LinkSize + 4

// dataHeaderSize is the 4-byte append cursor at the start of the data
// region: [used:4].
const dataHeaderSize = 4

// Avl16eMap splits its block into a forward-growing data region holding
// plain log-format records and an AVL16 index over 4-byte offsets into
// that region, keeping lookups O(log n) while allowing larger or more
// variably sized records than Avl16Map's inline layout. Grounded on
// spec.md §4.3's "avl16e" format and dblock-avl16e-map.c; Replace rewrites
// only the index entry to point at a freshly appended record, leaving the
// old record as dead space reclaimed by compaction (not modeled here).
type Avl16eMap struct {
	block    []byte
	dataSize int
	data     []byte
	index    *intrusive.AVL16
}

// NewAvl16eMap returns a map that will split an Init'd block into a
// dataSize-byte data region followed by an index region sized for the
// remaining bytes.
func NewAvl16eMap(dataSize int) *Avl16eMap {
	return &Avl16eMap{dataSize: dataSize}
}

func (m *Avl16eMap) Init(block []byte) {
	m.block = block
	m.data = block[:m.dataSize]
	binary.LittleEndian.PutUint32(m.data[0:4], dataHeaderSize)
	m.index = intrusive.Init(block[m.dataSize:], avl16eIndexStride)
}

// Load wraps an already-initialized block whose data region size is known.
func (m *Avl16eMap) Load(block []byte, dataSize int) {
	m.block = block
	m.dataSize = dataSize
	m.data = block[:dataSize]
	m.index = intrusive.NewAVL16(block[dataSize:], avl16eIndexStride)
}

func (m *Avl16eMap) dataUsed() uint32     { return binary.LittleEndian.Uint32(m.data[0:4]) }
func (m *Avl16eMap) setDataUsed(v uint32) { binary.LittleEndian.PutUint32(m.data[0:4], v) }

func (m *Avl16eMap) offsetAt(pos uint16) uint32 {
	return binary.LittleEndian.Uint32(m.index.Payload(pos))
}
func (m *Avl16eMap) setOffsetAt(pos uint16, off uint32) {
	binary.LittleEndian.PutUint32(m.index.Payload(pos), off)
}

func (m *Avl16eMap) recordAt(pos uint16) (key, value []byte) {
	k, v, _, _ := decodeRecord(m.data, int(m.offsetAt(pos)))
	return k, v
}

func (m *Avl16eMap) keyAt(pos uint16) []byte {
	k, _ := m.recordAt(pos)
	return k
}

func (m *Avl16eMap) cmpKey(key []byte) intrusive.Cmp {
	return func(pos uint16) int { return bytesCompare(m.keyAt(pos), key) }
}

func (m *Avl16eMap) appendData(key, value []byte) (uint32, error) {
	size := recordSize(key, value)
	off := m.dataUsed()
	if int(off)+size > len(m.data) {
		return 0, ErrNoSpace
	}
	encodeRecord(m.data[off:off], key, value)
	m.setDataUsed(off + uint32(size))
	return off, nil
}

func (m *Avl16eMap) Lookup(key []byte) ([]byte, bool) {
	pos, found := m.index.Find(m.cmpKey(key))
	if !found {
		return nil, false
	}
	_, v := m.recordAt(pos)
	return v, true
}

func (m *Avl16eMap) FirstKey() ([]byte, bool) {
	pos := m.index.Min()
	if pos == 0 {
		return nil, false
	}
	return m.keyAt(pos), true
}

func (m *Avl16eMap) LastKey() ([]byte, bool) {
	pos := m.index.Max()
	if pos == 0 {
		return nil, false
	}
	return m.keyAt(pos), true
}

func (m *Avl16eMap) Seek(pos SeekPos, key []byte) (KV, bool) {
	var n uint16
	switch pos {
	case SeekBegin:
		n = m.index.Min()
	case SeekEnd:
		n = m.index.Max()
	case SeekEQ:
		if found, ok := m.index.Find(m.cmpKey(key)); ok {
			n = found
		}
	case SeekGE:
		n = m.index.Seek(m.cmpKey(key))
	case SeekGT:
		n = m.index.Seek(m.cmpKey(key))
		if n != 0 && bytesEqual(m.keyAt(n), key) {
			n = m.index.Next(n)
		}
	case SeekLE, SeekLT:
		ge := m.index.Seek(m.cmpKey(key))
		if ge == 0 {
			n = m.index.Max()
		} else if pos == SeekLE && bytesEqual(m.keyAt(ge), key) {
			n = ge
		} else {
			n = m.index.Prev(ge)
		}
	}
	if n == 0 {
		return KV{}, false
	}
	k, v := m.recordAt(n)
	return KV{Key: k, Value: v}, true
}

func (m *Avl16eMap) insertNew(key, value []byte) error {
	if !m.HasSpace(key, value) {
		return ErrNoSpace
	}
	off, err := m.appendData(key, value)
	if err != nil {
		return err
	}
	_, ok := m.index.Insert(m.cmpKey(key), func(payload []byte) {
		binary.LittleEndian.PutUint32(payload, off)
	})
	if !ok {
		return ErrNoSpace
	}
	return nil
}

func (m *Avl16eMap) Insert(key, value []byte) error  { return m.insertNew(key, value) }
func (m *Avl16eMap) Append(key, value []byte) error  { return m.insertNew(key, value) }
func (m *Avl16eMap) Prepend(key, value []byte) error { return m.insertNew(key, value) }

func (m *Avl16eMap) Remove(key []byte) error {
	if !m.index.Remove(m.cmpKey(key)) {
		return ErrNotFound
	}
	return nil
}

// Replace appends a fresh record to the data region and repoints the
// existing index entry at it in place; the key is unchanged so the index's
// sort order is unaffected and no tree restructuring is required. The old
// record becomes dead space.
func (m *Avl16eMap) Replace(key, value []byte) error {
	pos, found := m.index.Find(m.cmpKey(key))
	if !found {
		return ErrNotFound
	}
	off, err := m.appendData(key, value)
	if err != nil {
		return err
	}
	m.setOffsetAt(pos, off)
	return nil
}

func (m *Avl16eMap) HasSpace(key, value []byte) bool {
	return m.index.HasSpace() && int(m.dataUsed())+recordSize(key, value) <= len(m.data)
}

func (m *Avl16eMap) MaxOverhead() int {
	return avl16eIndexStride + 1 + 8 + 8
}

func (m *Avl16eMap) Stats() Stats {
	count := int(m.index.Count())
	used := int(m.dataUsed()) + count*avl16eIndexStride
	return Stats{
		Count:     count,
		UsedBytes: used,
		FreeBytes: len(m.block) - used,
	}
}
