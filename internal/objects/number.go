package objects

import (
	"sync"

	"github.com/raleighsl/raleighsl/internal/objectengine"
	"github.com/raleighsl/raleighsl/internal/txn"
)

// Number holds a single read-visible int64 plus a write-visible value that
// diverges from it while a transaction holds the object's write lock.
// Grounded on objects/number/number.c: `{read_value, write_value, txn_id,
// atom_header}`.
type Number struct {
	mu    sync.Mutex
	read  int64
	write int64
	txnID uint64

	obj *objectengine.Object
}

// numberAtom is the opaque mutation pointer registered with the owning
// txn. It carries no payload: apply/revert only need to know which Number
// to act on, and that's already implicit in the Applier (obj) the atom is
// filed under.
type numberAtom struct{}

// NumberPlug is the objectengine.Plug for the "number" type.
var NumberPlug = numberPlug{}

type numberPlug struct{}

func (numberPlug) Label() string { return "number" }

func (numberPlug) Create() (objectengine.Membuf, error) {
	return &Number{}, nil
}

func (numberPlug) Attach(m objectengine.Membuf, obj *objectengine.Object) {
	m.(*Number).obj = obj
}

func (numberPlug) Close(objectengine.Membuf) error    { return nil }
func (numberPlug) Sync(objectengine.Membuf) error     { return nil }
func (numberPlug) Unlink(objectengine.Membuf) error   { return nil }
func (numberPlug) Rollback(objectengine.Membuf) error { return nil }

// Commit is a no-op: Number's Apply already promotes write_value to
// read_value per object (there is only one side, unlike deque), so there
// is nothing left for the once-per-object commit hook to do.
func (numberPlug) Commit(objectengine.Membuf) error { return nil }

func (numberPlug) Apply(m objectengine.Membuf, mutation any) error {
	n := m.(*Number)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.read = n.write
	n.txnID = 0
	return nil
}

func (numberPlug) Revert(m objectengine.Membuf, mutation any) error {
	n := m.(*Number)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.write = n.read
	n.txnID = 0
	return nil
}

// ownerID returns 0 for auto-commit (nil tx), else the txn's id.
func ownerID(tx *txn.Txn) uint64 {
	if tx == nil {
		return 0
	}
	return tx.ID
}

// checkLock enforces spec.md §4.6's operation lock: a non-zero txnID not
// matching the caller's owner id means another transaction holds this
// object's write lock.
func checkLock(txnID uint64, tx *txn.Txn) error {
	if txnID != 0 && txnID != ownerID(tx) {
		return ErrTxnLocked
	}
	return nil
}

// register files an atom with tx the first time tx touches this object
// (txnID was free), per spec.md §4.6 "appended when an object is first
// touched in that txn". A nil tx (auto-commit) never registers an atom.
func (n *Number) register(tx *txn.Txn) error {
	if tx == nil {
		return nil
	}
	if n.txnID == tx.ID {
		return nil
	}
	n.txnID = tx.ID
	return tx.Add(n.obj, &numberAtom{})
}

// Get returns write_value when reading from the owning transaction, else
// read_value.
func (n *Number) Get(tx *txn.Txn) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if tx != nil && n.txnID == tx.ID {
		return n.write
	}
	return n.read
}

// Set unconditionally assigns value.
func (n *Number) Set(tx *txn.Txn, value int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := checkLock(n.txnID, tx); err != nil {
		return err
	}
	if err := n.register(tx); err != nil {
		return err
	}
	n.write = value
	if tx == nil {
		n.read = value
	}
	return nil
}

// Add adds delta to the current value.
func (n *Number) Add(tx *txn.Txn, delta int64) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := checkLock(n.txnID, tx); err != nil {
		return 0, err
	}
	if err := n.register(tx); err != nil {
		return 0, err
	}
	n.write += delta
	if tx == nil {
		n.read = n.write
	}
	return n.write, nil
}

// Mul multiplies the current value by factor.
func (n *Number) Mul(tx *txn.Txn, factor int64) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := checkLock(n.txnID, tx); err != nil {
		return 0, err
	}
	if err := n.register(tx); err != nil {
		return 0, err
	}
	n.write *= factor
	if tx == nil {
		n.read = n.write
	}
	return n.write, nil
}

// Div divides the current value by divisor, failing with ErrDivByZero
// (surfaced as NUMBER_DIVMOD_BYZERO at the object API) when divisor is 0.
func (n *Number) Div(tx *txn.Txn, divisor int64) (int64, error) {
	if divisor == 0 {
		return 0, ErrDivByZero
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := checkLock(n.txnID, tx); err != nil {
		return 0, err
	}
	if err := n.register(tx); err != nil {
		return 0, err
	}
	n.write /= divisor
	if tx == nil {
		n.read = n.write
	}
	return n.write, nil
}

// CAS compares the current value against old and, on match, assigns new.
// It always returns the value observed at comparison time (before the
// swap), matching scenario 1/2 of spec.md §8: success returns the old
// value, mismatch returns the (unchanged) current value.
func (n *Number) CAS(tx *txn.Txn, old, new int64) (current int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := checkLock(n.txnID, tx); err != nil {
		return 0, err
	}
	var cur int64
	if tx != nil && n.txnID == tx.ID {
		cur = n.write
	} else {
		cur = n.read
	}
	if cur != old {
		return cur, ErrDataCAS
	}
	if err := n.register(tx); err != nil {
		return cur, err
	}
	n.write = new
	if tx == nil {
		n.read = new
	}
	return cur, nil
}
