package intrusive

import "encoding/binary"

// AVL16 head layout, stored at the start of the caller-owned block:
//
//	stride  uint16  bytes per node slot, including the AVL16 link header
//	root    uint16  1-based position of the root node, 0 = empty
//	free    uint16  1-based position of the free-list head, 0 = none
//	count   uint16  number of node slots ever allocated (high-water mark)
//
// Each node slot holds a 7-byte link header
// [left:2][right:2][parent:2][balance:1] followed by stride-7 bytes of
// caller payload. Positions are 1-based indices into the slot array so 0
// can serve as a nil sentinel, matching the original's on-disk avl16 block
// format without exposing Go pointers into a byte slice that may be
// persisted or reloaded from disk.
const avl16HeadSize = 8
const avl16LinkSize = 7

// Avl16HeadSize and Avl16LinkSize expose the header/per-node overhead so
// callers (e.g. internal/dblock) can size blocks and strides correctly.
const Avl16HeadSize = avl16HeadSize
const Avl16LinkSize = avl16LinkSize

// AVL16 is a fixed-stride AVL tree over a raw []byte block. The caller
// supplies a 3-way comparator against the payload at each candidate
// position, decoupling tree mechanics from the domain's key encoding so the
// same structure backs both dblock's avl16 (inline records) and avl16e
// (external index over a log) formats.
type AVL16 struct {
	block  []byte
	stride int
}

// NewAVL16 wraps an existing block previously formatted by Init.
func NewAVL16(block []byte, stride int) *AVL16 {
	return &AVL16{block: block, stride: stride}
}

// Init formats block as an empty tree with the given per-node stride
// (must be > avl16LinkSize). The block must be sized
// avl16HeadSize + capacity*stride for the desired node capacity.
func Init(block []byte, stride int) *AVL16 {
	binary.LittleEndian.PutUint16(block[0:2], uint16(stride))
	binary.LittleEndian.PutUint16(block[2:4], 0)
	binary.LittleEndian.PutUint16(block[4:6], 0)
	binary.LittleEndian.PutUint16(block[6:8], 0)
	return &AVL16{block: block, stride: stride}
}

func (t *AVL16) Root() uint16  { return binary.LittleEndian.Uint16(t.block[2:4]) }
func (t *AVL16) Count() uint16 { return binary.LittleEndian.Uint16(t.block[6:8]) }

func (t *AVL16) setRoot(pos uint16) { binary.LittleEndian.PutUint16(t.block[2:4], pos) }
func (t *AVL16) freeHead() uint16   { return binary.LittleEndian.Uint16(t.block[4:6]) }
func (t *AVL16) setFreeHead(pos uint16) {
	binary.LittleEndian.PutUint16(t.block[4:6], pos)
}
func (t *AVL16) setCount(c uint16) { binary.LittleEndian.PutUint16(t.block[6:8], c) }

func (t *AVL16) slotOffset(pos uint16) int {
	return avl16HeadSize + int(pos-1)*t.stride
}

// Payload returns the caller-owned payload area of the node at pos.
func (t *AVL16) Payload(pos uint16) []byte {
	off := t.slotOffset(pos)
	return t.block[off+avl16LinkSize : off+t.stride]
}

func (t *AVL16) left(pos uint16) uint16 {
	off := t.slotOffset(pos)
	return binary.LittleEndian.Uint16(t.block[off : off+2])
}
func (t *AVL16) setLeft(pos, v uint16) {
	off := t.slotOffset(pos)
	binary.LittleEndian.PutUint16(t.block[off:off+2], v)
}
func (t *AVL16) right(pos uint16) uint16 {
	off := t.slotOffset(pos)
	return binary.LittleEndian.Uint16(t.block[off+2 : off+4])
}
func (t *AVL16) setRight(pos, v uint16) {
	off := t.slotOffset(pos)
	binary.LittleEndian.PutUint16(t.block[off+2:off+4], v)
}
func (t *AVL16) parent(pos uint16) uint16 {
	if pos == 0 {
		return 0
	}
	off := t.slotOffset(pos)
	return binary.LittleEndian.Uint16(t.block[off+4 : off+6])
}
func (t *AVL16) setParent(pos, v uint16) {
	off := t.slotOffset(pos)
	binary.LittleEndian.PutUint16(t.block[off+4:off+6], v)
}
func (t *AVL16) balance(pos uint16) int8 {
	off := t.slotOffset(pos)
	return int8(t.block[off+6])
}
func (t *AVL16) setBalance(pos uint16, b int8) {
	off := t.slotOffset(pos)
	t.block[off+6] = byte(b)
}

// setChild attaches child under parent on the given side (true = left),
// fixing up both the parent's link and the child's parent back-link.
// parent == 0 means child becomes the tree root.
func (t *AVL16) setChild(parent uint16, left bool, child uint16) {
	if parent == 0 {
		t.setRoot(child)
	} else if left {
		t.setLeft(parent, child)
	} else {
		t.setRight(parent, child)
	}
	if child != 0 {
		t.setParent(child, parent)
	}
}

// Capacity returns the number of node slots the block can hold.
func (t *AVL16) Capacity() int {
	return (len(t.block) - avl16HeadSize) / t.stride
}

// HasSpace reports whether Alloc would succeed without growing the block.
func (t *AVL16) HasSpace() bool {
	if t.freeHead() != 0 {
		return true
	}
	return int(t.Count()) < t.Capacity()
}

// Alloc reserves a node slot and returns its position. ok is false if the
// block is full.
func (t *AVL16) Alloc() (pos uint16, ok bool) {
	if fh := t.freeHead(); fh != 0 {
		t.setFreeHead(t.left(fh))
		t.resetNode(fh)
		return fh, true
	}
	next := t.Count() + 1
	if int(next) > t.Capacity() {
		return 0, false
	}
	t.setCount(next)
	t.resetNode(next)
	return next, true
}

func (t *AVL16) resetNode(pos uint16) {
	t.setLeft(pos, 0)
	t.setRight(pos, 0)
	t.setParent(pos, 0)
	t.setBalance(pos, 0)
}

// free pushes pos onto the free list for reuse by a later Alloc.
func (t *AVL16) free(pos uint16) {
	t.setLeft(pos, t.freeHead())
	t.setRight(pos, 0)
	t.setParent(pos, 0)
	t.setFreeHead(pos)
}

// Cmp compares the payload at pos against the sought key: negative if pos's
// key is less than sought, zero if equal, positive if greater.
type Cmp func(pos uint16) int

// Find searches the tree for a node where cmp returns 0.
func (t *AVL16) Find(cmp Cmp) (pos uint16, found bool) {
	cur := t.Root()
	for cur != 0 {
		c := cmp(cur)
		switch {
		case c == 0:
			return cur, true
		case c < 0:
			cur = t.right(cur)
		default:
			cur = t.left(cur)
		}
	}
	return 0, false
}

// Min returns the left-most node, or 0 if the tree is empty.
func (t *AVL16) Min() uint16 { return t.minFrom(t.Root()) }

func (t *AVL16) minFrom(pos uint16) uint16 {
	if pos == 0 {
		return 0
	}
	for t.left(pos) != 0 {
		pos = t.left(pos)
	}
	return pos
}

// Max returns the right-most node, or 0 if the tree is empty.
func (t *AVL16) Max() uint16 { return t.maxFrom(t.Root()) }

func (t *AVL16) maxFrom(pos uint16) uint16 {
	if pos == 0 {
		return 0
	}
	for t.right(pos) != 0 {
		pos = t.right(pos)
	}
	return pos
}

// Seek returns the smallest node whose key is >= the sought key.
func (t *AVL16) Seek(cmp Cmp) uint16 {
	cur := t.Root()
	var candidate uint16
	for cur != 0 {
		c := cmp(cur)
		switch {
		case c == 0:
			return cur
		case c < 0:
			cur = t.right(cur)
		default:
			candidate = cur
			cur = t.left(cur)
		}
	}
	return candidate
}

// Next returns the in-order successor of pos, or 0 if pos is the maximum.
func (t *AVL16) Next(pos uint16) uint16 {
	if r := t.right(pos); r != 0 {
		return t.minFrom(r)
	}
	cur, p := pos, t.parent(pos)
	for p != 0 && cur == t.right(p) {
		cur, p = p, t.parent(p)
	}
	return p
}

// Prev returns the in-order predecessor of pos, or 0 if pos is the minimum.
func (t *AVL16) Prev(pos uint16) uint16 {
	if l := t.left(pos); l != 0 {
		return t.maxFrom(l)
	}
	cur, p := pos, t.parent(pos)
	for p != 0 && cur == t.left(p) {
		cur, p = p, t.parent(p)
	}
	return p
}

// Walk performs an in-order traversal, calling visit for each node
// position. Stops early if visit returns false.
func (t *AVL16) Walk(visit func(pos uint16) bool) {
	for pos := t.Min(); pos != 0; pos = t.Next(pos) {
		if !visit(pos) {
			return
		}
	}
}

// Insert allocates a new node, stores the payload via init, and links it
// into the tree at the position determined by cmp (called against existing
// nodes during descent; cmp(pos) > 0 means pos's key is greater than the new
// key, so the new node goes to its left). Returns the new node's position,
// or 0 if the block is full.
func (t *AVL16) Insert(cmp Cmp, init func(payload []byte)) (pos uint16, ok bool) {
	pos, ok = t.Alloc()
	if !ok {
		return 0, false
	}
	init(t.Payload(pos))

	if t.Root() == 0 {
		t.setRoot(pos)
		return pos, true
	}

	cur := t.Root()
	for {
		if cmp(cur) > 0 {
			if t.left(cur) == 0 {
				t.setChild(cur, true, pos)
				break
			}
			cur = t.left(cur)
		} else {
			if t.right(cur) == 0 {
				t.setChild(cur, false, pos)
				break
			}
			cur = t.right(cur)
		}
	}
	t.retraceInsert(pos)
	return pos, true
}

// retraceInsert walks up from the newly inserted leaf n, updating balance
// factors and rotating at the first node that becomes unbalanced.
func (t *AVL16) retraceInsert(n uint16) {
	child := n
	parent := t.parent(n)
	for parent != 0 {
		wasLeft := t.left(parent) == child
		if wasLeft {
			t.setBalance(parent, t.balance(parent)-1)
		} else {
			t.setBalance(parent, t.balance(parent)+1)
		}
		b := t.balance(parent)
		if b == 0 {
			return
		}
		if b == 1 || b == -1 {
			child, parent = parent, t.parent(parent)
			continue
		}
		gp := t.parent(parent)
		gpLeft := gp != 0 && t.left(gp) == parent
		var newSub uint16
		if b < -1 {
			if t.balance(t.left(parent)) <= 0 {
				newSub = t.rotateLeftHeavy(parent)
			} else {
				newSub = t.rotateLeftRightHeavy(parent)
			}
		} else {
			if t.balance(t.right(parent)) >= 0 {
				newSub = t.rotateRightHeavy(parent)
			} else {
				newSub = t.rotateRightLeftHeavy(parent)
			}
		}
		t.setChild(gp, gpLeft, newSub)
		return
	}
}

func (t *AVL16) rotateLeftHeavy(n uint16) uint16 {
	l := t.left(n)
	t.setChild(n, true, t.right(l))
	t.setChild(l, false, n)
	t.setBalance(n, 0)
	t.setBalance(l, 0)
	return l
}

func (t *AVL16) rotateRightHeavy(n uint16) uint16 {
	r := t.right(n)
	t.setChild(n, false, t.left(r))
	t.setChild(r, true, n)
	t.setBalance(n, 0)
	t.setBalance(r, 0)
	return r
}

func (t *AVL16) rotateLeftRightHeavy(n uint16) uint16 {
	l := t.left(n)
	lr := t.right(l)
	t.setChild(l, false, t.left(lr))
	t.setChild(lr, true, l)
	t.setChild(n, true, t.right(lr))
	t.setChild(lr, false, n)

	switch t.balance(lr) {
	case 1:
		t.setBalance(l, -1)
		t.setBalance(n, 0)
	case -1:
		t.setBalance(l, 0)
		t.setBalance(n, 1)
	default:
		t.setBalance(l, 0)
		t.setBalance(n, 0)
	}
	t.setBalance(lr, 0)
	return lr
}

func (t *AVL16) rotateRightLeftHeavy(n uint16) uint16 {
	r := t.right(n)
	rl := t.left(r)
	t.setChild(r, true, t.right(rl))
	t.setChild(rl, false, r)
	t.setChild(n, false, t.left(rl))
	t.setChild(rl, true, n)

	switch t.balance(rl) {
	case 1:
		t.setBalance(n, -1)
		t.setBalance(r, 0)
	case -1:
		t.setBalance(n, 0)
		t.setBalance(r, 1)
	default:
		t.setBalance(n, 0)
		t.setBalance(r, 0)
	}
	t.setBalance(rl, 0)
	return rl
}

// Remove deletes the node matched by cmp, if any, and reports whether a
// node was found and removed.
func (t *AVL16) Remove(cmp Cmp) bool {
	pos, found := t.Find(cmp)
	if !found {
		return false
	}
	t.removeNode(pos)
	return true
}

// removeNode deletes the node at pos. If pos has two children, its payload
// is overwritten in place with its in-order successor's payload and the
// successor's (at-most-one-child) node is unlinked instead — this avoids
// rebalancing around a node that is itself mid-removal, which would risk a
// rotation relocating it before the splice completes.
func (t *AVL16) removeNode(pos uint16) {
	l, r := t.left(pos), t.right(pos)
	if l != 0 && r != 0 {
		succ := t.minFrom(r)
		copy(t.Payload(pos), t.Payload(succ))
		pos = succ
		l, r = t.left(pos), t.right(pos)
	}

	child := l
	if child == 0 {
		child = r
	}
	parent := t.parent(pos)
	parentLeft := parent != 0 && t.left(parent) == pos
	t.setChild(parent, parentLeft, child)
	t.retraceRemove(parent, child, parentLeft)
	t.free(pos)
}

// retraceRemove rebalances starting at parent after one of its children
// (the side given by removedLeft) lost a node, now holding childNowAt.
func (t *AVL16) retraceRemove(parent, childNowAt uint16, removedLeft bool) {
	for parent != 0 {
		if removedLeft {
			t.setBalance(parent, t.balance(parent)+1)
		} else {
			t.setBalance(parent, t.balance(parent)-1)
		}
		b := t.balance(parent)
		if b == 1 || b == -1 {
			// height unchanged at this level, stop.
			return
		}
		if b == 0 {
			childNowAt = parent
			removedLeft = t.parent(parent) != 0 && t.left(t.parent(parent)) == parent
			parent = t.parent(parent)
			continue
		}

		gp := t.parent(parent)
		gpLeft := gp != 0 && t.left(gp) == parent
		var newSub uint16
		heightUnchanged := false
		if b < -1 {
			lb := t.balance(t.left(parent))
			if lb <= 0 {
				newSub = t.rotateLeftHeavy(parent)
				heightUnchanged = lb == 0
				if heightUnchanged {
					t.setBalance(parent, -1)
					t.setBalance(newSub, 1)
				}
			} else {
				newSub = t.rotateLeftRightHeavy(parent)
			}
		} else {
			rb := t.balance(t.right(parent))
			if rb >= 0 {
				newSub = t.rotateRightHeavy(parent)
				heightUnchanged = rb == 0
				if heightUnchanged {
					t.setBalance(parent, 1)
					t.setBalance(newSub, -1)
				}
			} else {
				newSub = t.rotateRightLeftHeavy(parent)
			}
		}
		t.setChild(gp, gpLeft, newSub)
		if heightUnchanged {
			return
		}
		childNowAt = newSub
		removedLeft = gp != 0 && t.left(gp) == newSub
		parent = gp
	}
	_ = childNowAt
}
