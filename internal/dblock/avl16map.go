package dblock

import "github.com/raleighsl/raleighsl/internal/intrusive"

// avl16RecordOverhead is the worst-case per-record header bytes the payload
// area must additionally fit beyond the raw key/value bytes: the 1-byte
// width head plus two 8-byte-wide length fields (the theoretical max; actual
// records use the minimal width per record via recordSize).
const avl16RecordOverhead = 1 + 8 + 8

// Avl16Map is an in-block AVL tree keyed on inlined records: every node's
// payload area holds one key/value record in the same format LogMap uses,
// giving O(log n) lookups instead of log's linear scan. Grounded on
// spec.md §4.3's "avl16" format and dblock-avl16-map.c.
type Avl16Map struct {
	tree   *intrusive.AVL16
	stride int
}

// NewAvl16Map wraps block with a record stride sized for keys/values up to
// maxKey/maxValue bytes (used only to size new blocks via Init; an
// already-initialized block carries its stride in its header).
func NewAvl16Map(maxKey, maxValue int) *Avl16Map {
	return &Avl16Map{stride: maxKey + maxValue + avl16RecordOverhead}
}

func (m *Avl16Map) Init(block []byte) {
	m.tree = intrusive.Init(block, m.stride)
}

// Load wraps an already-initialized block (stride read from its header).
func (m *Avl16Map) Load(block []byte, stride int) {
	m.tree = intrusive.NewAVL16(block, stride)
	m.stride = stride
}

func (m *Avl16Map) keyAt(pos uint16) []byte {
	k, _, _, _ := decodeRecord(m.tree.Payload(pos), 0)
	return k
}

func (m *Avl16Map) recordAt(pos uint16) (key, value []byte) {
	k, v, _, _ := decodeRecord(m.tree.Payload(pos), 0)
	return k, v
}

func (m *Avl16Map) cmpKey(key []byte) intrusive.Cmp {
	return func(pos uint16) int { return bytesCompare(m.keyAt(pos), key) }
}

func (m *Avl16Map) Lookup(key []byte) ([]byte, bool) {
	pos, found := m.tree.Find(m.cmpKey(key))
	if !found {
		return nil, false
	}
	_, v := m.recordAt(pos)
	return v, true
}

func (m *Avl16Map) FirstKey() ([]byte, bool) {
	pos := m.tree.Min()
	if pos == 0 {
		return nil, false
	}
	return m.keyAt(pos), true
}

func (m *Avl16Map) LastKey() ([]byte, bool) {
	pos := m.tree.Max()
	if pos == 0 {
		return nil, false
	}
	return m.keyAt(pos), true
}

func (m *Avl16Map) Seek(pos SeekPos, key []byte) (KV, bool) {
	var n uint16
	switch pos {
	case SeekBegin:
		n = m.tree.Min()
	case SeekEnd:
		n = m.tree.Max()
	case SeekEQ:
		if found, ok := m.tree.Find(m.cmpKey(key)); ok {
			n = found
		}
	case SeekGE:
		n = m.tree.Seek(m.cmpKey(key))
	case SeekGT:
		n = m.tree.Seek(m.cmpKey(key))
		if n != 0 && bytesEqual(m.keyAt(n), key) {
			n = m.tree.Next(n)
		}
	case SeekLE, SeekLT:
		ge := m.tree.Seek(m.cmpKey(key))
		if ge == 0 {
			n = m.tree.Max()
		} else if pos == SeekLE && bytesEqual(m.keyAt(ge), key) {
			n = ge
		} else {
			n = m.tree.Prev(ge)
		}
	}
	if n == 0 {
		return KV{}, false
	}
	k, v := m.recordAt(n)
	return KV{Key: k, Value: v}, true
}

func (m *Avl16Map) insertNew(key, value []byte) error {
	if !m.HasSpace(key, value) {
		return ErrNoSpace
	}
	_, ok := m.tree.Insert(m.cmpKey(key), func(payload []byte) {
		encodeRecord(payload[:0], key, value)
	})
	if !ok {
		return ErrNoSpace
	}
	return nil
}

func (m *Avl16Map) Insert(key, value []byte) error  { return m.insertNew(key, value) }
func (m *Avl16Map) Append(key, value []byte) error  { return m.insertNew(key, value) }
func (m *Avl16Map) Prepend(key, value []byte) error { return m.insertNew(key, value) }

func (m *Avl16Map) Remove(key []byte) error {
	if !m.tree.Remove(m.cmpKey(key)) {
		return ErrNotFound
	}
	return nil
}

func (m *Avl16Map) Replace(key, value []byte) error {
	pos, found := m.tree.Find(m.cmpKey(key))
	if !found {
		return ErrNotFound
	}
	if recordSize(key, value) > len(m.tree.Payload(pos)) {
		return ErrNoSpace
	}
	encodeRecord(m.tree.Payload(pos)[:0], key, value)
	return nil
}

func (m *Avl16Map) HasSpace(key, value []byte) bool {
	return m.tree.HasSpace() && recordSize(key, value) <= m.stride-intrusive.Avl16LinkSize
}

func (m *Avl16Map) MaxOverhead() int { return intrusive.Avl16LinkSize + avl16RecordOverhead }

func (m *Avl16Map) Stats() Stats {
	count := int(m.tree.Count())
	return Stats{
		Count:     count,
		UsedBytes: count * m.stride,
		FreeBytes: (m.tree.Capacity() - count) * m.stride,
	}
}
