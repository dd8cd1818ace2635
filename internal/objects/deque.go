package objects

import (
	"sync"

	"github.com/raleighsl/raleighsl/internal/intrusive"
	"github.com/raleighsl/raleighsl/internal/objectengine"
	"github.com/raleighsl/raleighsl/internal/txn"
)

const (
	sideFront = 0
	sideBack  = 1
)

// dequeNode is one value in any of a Deque's three lists (pendingFront,
// pendingBack, data); DNode is embedded by value per internal/intrusive's
// "never expose a bare node pointer" rule.
type dequeNode struct {
	link  intrusive.DNode
	value []byte
}

// Deque holds two pending lists (front/back), a committed data list, and a
// per-side operation lock (txnID), matching objects/deque/deque.c's
// {pending_front, pending_back, data} shape. Rather than the original's
// removed-front/back cursors into a never-shrinking data list, committed
// pops physically unlink the node from data — an equivalent externally
// observable FIFO with a simpler Go representation (see DESIGN.md).
type Deque struct {
	mu sync.Mutex

	pendingFront intrusive.DNode
	pendingBack  intrusive.DNode
	data         intrusive.DNode

	txnID [2]uint64

	obj *objectengine.Object
}

// dequeAtom is the opaque mutation pointer registered per side the first
// time a push locks it within a transaction.
type dequeAtom struct {
	side int
}

// DequePlug is the objectengine.Plug for the "deque" type.
var DequePlug = dequePlug{}

type dequePlug struct{}

func (dequePlug) Label() string { return "deque" }

func (dequePlug) Create() (objectengine.Membuf, error) {
	d := &Deque{}
	d.pendingFront.Init()
	d.pendingBack.Init()
	d.data.Init()
	return d, nil
}

func (dequePlug) Attach(m objectengine.Membuf, obj *objectengine.Object) {
	m.(*Deque).obj = obj
}

func (dequePlug) Close(objectengine.Membuf) error { return nil }
func (dequePlug) Sync(objectengine.Membuf) error  { return nil }

// Unlink is a no-op: a deque carries no durable state beyond its membuf.
func (dequePlug) Unlink(objectengine.Membuf) error { return nil }

// Apply implements the resolved open question from spec.md §9: it only
// clears the per-side operation lock (mirroring objects/deque/deque.c's
// __object_apply, which zeroes the mutation's txn-id pointer and nothing
// else). The actual pending->committed merge happens in Commit, once per
// object, after every atom on it has been applied — see dequePlug.Commit.
func (dequePlug) Apply(m objectengine.Membuf, mutation any) error {
	d := m.(*Deque)
	a := mutation.(*dequeAtom)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txnID[a.side] = 0
	return nil
}

// Revert discards the pending entries pushed to the mutation's side (they
// never committed) and clears that side's lock.
func (dequePlug) Revert(m objectengine.Membuf, mutation any) error {
	d := m.(*Deque)
	a := mutation.(*dequeAtom)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearPending(a.side)
	d.txnID[a.side] = 0
	return nil
}

// Commit performs the pending->committed merge for whichever side(s) this
// txn's Apply just freed (txnID==0 implies nothing else could be holding
// pending entries there, so merging is always safe and a no-op if empty).
func (dequePlug) Commit(m objectengine.Membuf) error {
	d := m.(*Deque)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.txnID[sideFront] == 0 {
		d.mergeFront()
	}
	if d.txnID[sideBack] == 0 {
		d.mergeBack()
	}
	return nil
}

func (dequePlug) Rollback(objectengine.Membuf) error { return nil }

func (d *Deque) pendingSentinel(side int) *intrusive.DNode {
	if side == sideFront {
		return &d.pendingFront
	}
	return &d.pendingBack
}

// clearPending unlinks and drops every node on the given side's pending
// list, reinitializing it to empty.
func (d *Deque) clearPending(side int) {
	sentinel := d.pendingSentinel(side)
	for n := intrusive.Front(sentinel); n != nil; n = intrusive.Front(sentinel) {
		intrusive.Del(n)
	}
}

// mergeFront splices pendingFront onto the front of data, preserving
// order, by repeatedly taking pendingFront's current back (oldest) element
// and prepending it to data: each prepend places an older element just
// ahead of whatever newer elements were already moved, ending with the
// newest pendingFront element — the one most recently pushed to front —
// as data's new frontmost entry.
func (d *Deque) mergeFront() {
	for n := intrusive.Back(&d.pendingFront); n != nil; n = intrusive.Back(&d.pendingFront) {
		intrusive.Del(n)
		intrusive.AddFront(&d.data, n)
	}
}

// mergeBack splices pendingBack onto the back of data in push order (the
// oldest back-pushed element first), which is already pendingBack's
// front-to-back order, so each element is simply appended in turn.
func (d *Deque) mergeBack() {
	for n := intrusive.Front(&d.pendingBack); n != nil; n = intrusive.Front(&d.pendingBack) {
		intrusive.Del(n)
		intrusive.AddBack(&d.data, n)
	}
}

// register files a side-scoped atom with tx the first time tx locks that
// side.
func (d *Deque) register(tx *txn.Txn, side int) error {
	if tx == nil {
		return nil
	}
	if d.txnID[side] == tx.ID {
		return nil
	}
	d.txnID[side] = tx.ID
	return tx.Add(d.obj, &dequeAtom{side: side})
}

// Push adds value to the front (front=true) or back (front=false) of the
// deque. A push to a side currently locked by a different transaction
// fails with ErrTxnLocked.
func (d *Deque) Push(tx *txn.Txn, front bool, value []byte) error {
	side := sideBack
	if front {
		side = sideFront
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkLock(d.txnID[side], tx); err != nil {
		return err
	}
	if err := d.register(tx, side); err != nil {
		return err
	}
	n := &dequeNode{value: value}
	n.link.Init()
	if front {
		intrusive.AddFront(&d.pendingFront, &n.link)
	} else {
		intrusive.AddBack(&d.pendingBack, &n.link)
	}
	if tx == nil {
		// auto-commit: nothing holds the lock, merge immediately so the
		// value is visible to the very next read.
		if front {
			d.mergeFront()
		} else {
			d.mergeBack()
		}
	}
	return nil
}

// Pop removes and returns a value from the front (front=true) or back
// (front=false) of the deque: it prefers the same side's pending entries
// (visible only to the transaction that owns that side's lock), then
// committed data, then the opposite side's pending entries as a last
// resort (also visible only to their owning transaction). Fails with
// ErrDataNoItems if nothing is visible to pop.
func (d *Deque) Pop(tx *txn.Txn, front bool) ([]byte, error) {
	same, opp := sideFront, sideBack
	if !front {
		same, opp = sideBack, sideFront
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if tx != nil && d.txnID[same] == tx.ID {
		if v, ok := d.popPendingSameEnd(same, front); ok {
			return v, nil
		}
	}
	if v, ok := d.popCommitted(front); ok {
		return v, nil
	}
	if tx != nil && d.txnID[opp] == tx.ID {
		if v, ok := d.popPendingFarEnd(opp, front); ok {
			return v, nil
		}
	}
	return nil, ErrDataNoItems
}

// popPendingSameEnd pops from the pending list matching the pop direction,
// at the end that mirrors how entries were pushed there (Front for a
// front-side pop, Back for a back-side pop), matching scenario 3 of
// spec.md §8 (push A, push B to front; pop front yields B then A).
func (d *Deque) popPendingSameEnd(side int, front bool) ([]byte, bool) {
	sentinel := d.pendingSentinel(side)
	var n *intrusive.DNode
	if front {
		n = intrusive.Front(sentinel)
	} else {
		n = intrusive.Back(sentinel)
	}
	if n == nil {
		return nil, false
	}
	intrusive.Del(n)
	return nodeValue(n), true
}

// popPendingFarEnd consumes the opposite side's pending list as a last
// resort, taking its oldest entry (the end away from where that side
// pushes) so a mixed front/back workload drains roughly FIFO even across
// the fallback path. This exact tie-break is not specified by spec.md
// §4.7/§9; documented here as the implementation's choice.
func (d *Deque) popPendingFarEnd(side int, front bool) ([]byte, bool) {
	sentinel := d.pendingSentinel(side)
	var n *intrusive.DNode
	if front {
		n = intrusive.Front(sentinel)
	} else {
		n = intrusive.Back(sentinel)
	}
	if n == nil {
		return nil, false
	}
	intrusive.Del(n)
	return nodeValue(n), true
}

func (d *Deque) popCommitted(front bool) ([]byte, bool) {
	var n *intrusive.DNode
	if front {
		n = intrusive.Front(&d.data)
	} else {
		n = intrusive.Back(&d.data)
	}
	if n == nil {
		return nil, false
	}
	intrusive.Del(n)
	return nodeValue(n), true
}

// nodeValue recovers the []byte payload of a node handed back by
// Front/Back, via intrusive.Owner (dequeNode embeds DNode as its first
// field).
func nodeValue(n *intrusive.DNode) []byte {
	return intrusive.Owner[dequeNode](n).value
}

// Len returns the number of committed entries currently visible (excludes
// any side's outstanding pending pushes).
func (d *Deque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for c := intrusive.Front(&d.data); c != nil; c = c.Next() {
		n++
	}
	return n
}
