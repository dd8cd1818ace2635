// Package txn implements the transaction engine: id allocation, the
// OPEN/COMMITTING/COMMITTED/ROLLING_BACK/ROLLED_BACK state machine, and the
// per-txn ordered atom list dispatched to each touched object's apply/revert
// hooks on commit/rollback. Grounded on spec.md §3/§4.6/§7/§8; the
// txn_add/apply/revert dispatch shape is inferred from the objects/*.c call
// sites (objects/number/number.c, objects/deque/deque.c) since the original
// has no single raleighsl-transaction.c this pack retrieved.
package txn

import (
	"sync"
	"sync/atomic"
)

// State is a transaction's position in the commit/rollback state machine.
type State int

const (
	Open State = iota
	Committing
	Committed
	RollingBack
	RolledBack
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case RollingBack:
		return "rolling_back"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Applier is the minimal interface a touched object must satisfy to
// participate in a transaction: ApplyAtom/RevertAtom receive exactly the
// opaque mutation pointer the object itself handed to Txn.Add when it was
// first touched.
//
// objectengine.Object satisfies this structurally (it delegates to the
// object's Plug), so this package never imports objectengine — the
// dependency runs the other way (engine -> txn), keeping the two free of
// an import cycle.
type Applier interface {
	ApplyAtom(mutation any) error
	RevertAtom(mutation any) error
}

// ObjectCommitter is an optional extension an Applier may implement: a hook
// invoked once per distinct object touched in a committing transaction,
// after every atom on that object has been applied. The deque type needs
// this (see internal/objects/deque.go) to merge pending writes into
// committed state only once the per-side operation lock (cleared by
// ApplyAtom) has actually been released.
type ObjectCommitter interface {
	CommitObject() error
}

// ObjectRoller is ObjectCommitter's rollback-side counterpart.
type ObjectRoller interface {
	RollbackObject() error
}

type atom struct {
	object   Applier
	mutation any
}

// Txn is one client-scoped transaction: an id, a state, and an ordered list
// of atoms appended as objects are first touched.
type Txn struct {
	ID uint64

	mu    sync.Mutex
	state State
	atoms []atom
	// order records each distinct object once, in first-touch order, for the once-per-object commit/rollback
	// hooks even though an object may accumulate more than one atom (e.g.
	// a deque touched on both its front and back side).
	order []Applier
	seen  map[Applier]struct{}
}

// Engine allocates monotonically increasing txn ids (>0) and begins new
// transactions.
type Engine struct {
	nextID uint64
}

// NewEngine returns a transaction engine with no transactions yet begun.
func NewEngine() *Engine {
	return &Engine{}
}

// Begin allocates a new txn id and returns an OPEN transaction.
func (e *Engine) Begin() *Txn {
	id := atomic.AddUint64(&e.nextID, 1)
	return &Txn{ID: id, state: Open, seen: make(map[Applier]struct{})}
}

// State returns the transaction's current state.
func (t *Txn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ErrNotOpen is returned by Add/Commit/Rollback when the transaction is not
// in a state that permits the operation.
type ErrNotOpen struct {
	State State
}

func (e *ErrNotOpen) Error() string {
	return "txn: transaction is not open (state=" + e.State.String() + ")"
}

// Add appends an atom for obj the first time obj is touched in this
// transaction, recording obj in the first-touch order used by Commit/
// Rollback's once-per-object hooks. Object types call Add on their first
// write to an object in a txn (a deque once per side it locks); later
// writes mutate the same pending state in place without calling Add again.
// Every call appends one atom; an existing atom for obj is never merged or
// replaced.
func (t *Txn) Add(obj Applier, mutation any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Open {
		return &ErrNotOpen{State: t.state}
	}
	t.atoms = append(t.atoms, atom{object: obj, mutation: mutation})
	if _, ok := t.seen[obj]; !ok {
		t.seen[obj] = struct{}{}
		t.order = append(t.order, obj)
	}
	return nil
}

// Commit walks the atom list front-to-back calling Applier.ApplyAtom, then
// calls ObjectCommitter.CommitObject once per distinct object in first-touch
// order. Per spec.md §4.6/§7 contract, apply/revert are arranged by object
// types so that they cannot fail once the atom exists; a failing ApplyAtom
// here indicates a contract violation by the object type and aborts the
// commit with the offending error rather than silently continuing.
func (t *Txn) Commit() error {
	t.mu.Lock()
	if t.state != Open {
		defer t.mu.Unlock()
		return &ErrNotOpen{State: t.state}
	}
	t.state = Committing
	atoms := t.atoms
	order := t.order
	t.mu.Unlock()

	for _, a := range atoms {
		if err := a.object.ApplyAtom(a.mutation); err != nil {
			return err
		}
	}
	for _, obj := range order {
		if c, ok := obj.(ObjectCommitter); ok {
			if err := c.CommitObject(); err != nil {
				return err
			}
		}
	}

	t.mu.Lock()
	t.state = Committed
	t.mu.Unlock()
	return nil
}

// Rollback walks the atom list back-to-front calling Applier.RevertAtom,
// then calls ObjectRoller.RollbackObject once per distinct object, in
// reverse first-touch order, mirroring Commit's ordering symmetrically.
func (t *Txn) Rollback() error {
	t.mu.Lock()
	if t.state != Open {
		defer t.mu.Unlock()
		return &ErrNotOpen{State: t.state}
	}
	t.state = RollingBack
	atoms := t.atoms
	order := t.order
	t.mu.Unlock()

	for i := len(atoms) - 1; i >= 0; i-- {
		if err := atoms[i].object.RevertAtom(atoms[i].mutation); err != nil {
			return err
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		if r, ok := order[i].(ObjectRoller); ok {
			if err := r.RollbackObject(); err != nil {
				return err
			}
		}
	}

	t.mu.Lock()
	t.state = RolledBack
	t.mu.Unlock()
	return nil
}

// Atoms returns the number of atoms currently recorded, for tests and
// diagnostics.
func (t *Txn) Atoms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.atoms)
}
