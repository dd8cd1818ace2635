// Package objectengine implements the object registry and the per-object
// vtable dispatch (C10): a label names a Plug (the type's behavior),
// Create resolves the label to a Plug and asks it to allocate a type's
// in-memory "membuf" state, and the returned Object is the handle callers
// use for the rest of its lifecycle. Grounded on spec.md §3/§4.5; the
// registry-of-plugs shape mirrors every objects/*.c file in
// original_source ending in a `const raleighsl_object_plug_t
// raleighsl_object_X = {...}` literal — Plug is that literal's Go
// equivalent, an interface value instead of a function-pointer struct, per
// design note §9 ("vtable polymorphism... replace function-pointer structs
// with the target language's interface abstraction").
package objectengine

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Membuf is the type-specific in-memory state pointer attached to an
// object; its concrete type is chosen once by the Plug that created it and
// never changes for the object's lifetime.
type Membuf any

// Plug is the vtable a type registers under a label: create/attach/close/
// unlink/sync manage the membuf's lifecycle, and apply/revert are invoked
// by the transaction engine (via Object, which implements txn.Applier)
// against the opaque mutation pointer the type itself produced.
type Plug interface {
	// Label is the type name objects of this plug are created under
	// ("number", "deque", "flow", "counter", ...).
	Label() string

	// Create allocates a fresh membuf for a new object of this type.
	Create() (Membuf, error)

	// Attach is called exactly once, immediately after Create, handing the
	// type a stable back-reference to the Object wrapping its membuf so it
	// can register atoms with a transaction engine (txn.Txn.Add expects an
	// Applier, which *Object provides).
	Attach(m Membuf, obj *Object)

	Close(m Membuf) error
	Commit(m Membuf) error
	Rollback(m Membuf) error
	Sync(m Membuf) error
	Unlink(m Membuf) error

	Apply(m Membuf, mutation any) error
	Revert(m Membuf, mutation any) error
}

// Object is the handle the engine hands back from Create/Lookup: a stable
// identity plus the type's membuf, both pinned for the object's lifetime.
// Operation callers hold only this borrowed reference; the engine
// exclusively owns the object (per spec.md §3's ownership model).
type Object struct {
	ID     uint64
	Label  string
	Type   string
	Membuf Membuf

	plug Plug
}

// ApplyAtom/RevertAtom/CommitObject/RollbackObject let *Object satisfy
// txn.Applier (plus the optional txn.ObjectCommitter/txn.ObjectRoller
// interfaces) purely structurally — objectengine never imports txn.
func (o *Object) ApplyAtom(mutation any) error  { return o.plug.Apply(o.Membuf, mutation) }
func (o *Object) RevertAtom(mutation any) error { return o.plug.Revert(o.Membuf, mutation) }
func (o *Object) CommitObject() error           { return o.plug.Commit(o.Membuf) }
func (o *Object) RollbackObject() error         { return o.plug.Rollback(o.Membuf) }

// Close releases the object's membuf. Unlink additionally destroys any
// durable state (a no-op for the in-memory-only built-in types).
func (o *Object) Close() error  { return o.plug.Close(o.Membuf) }
func (o *Object) Unlink() error { return o.plug.Unlink(o.Membuf) }
func (o *Object) Sync() error   { return o.plug.Sync(o.Membuf) }

// Registry maps a type label to its Plug and mints Object ids, playing the
// role of the boot-time registry spec.md §4.5 describes ("a registry maps
// label -> plug at boot time").
type Registry struct {
	mu     sync.Mutex
	plugs  map[string]Plug
	byName map[string]*Object
	nextID uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugs:  make(map[string]Plug),
		byName: make(map[string]*Object),
	}
}

// Register installs p under p.Label(), overwriting any previous plug with
// the same label.
func (r *Registry) Register(p Plug) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugs[p.Label()] = p
}

// ErrUnknownType is returned by Create when no plug is registered for the
// requested type label.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("objectengine: unknown object type %q", e.Type)
}

// ErrExists is returned by Create when label is already in use.
type ErrExists struct {
	Label string
}

func (e *ErrExists) Error() string {
	return fmt.Sprintf("objectengine: object %q already exists", e.Label)
}

// ErrNotFound is returned by Open/Close/Unlink when label names no object.
type ErrNotFound struct {
	Label string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("objectengine: object %q not found", e.Label)
}

// Create resolves typ to a registered Plug, allocates a fresh membuf, wraps
// it in a new Object under label, and registers it for later Open lookups.
func (r *Registry) Create(label, typ string) (*Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[label]; exists {
		return nil, &ErrExists{Label: label}
	}
	plug, ok := r.plugs[typ]
	if !ok {
		return nil, &ErrUnknownType{Type: typ}
	}
	membuf, err := plug.Create()
	if err != nil {
		return nil, err
	}
	id := atomic.AddUint64(&r.nextID, 1)
	obj := &Object{ID: id, Label: label, Type: typ, Membuf: membuf, plug: plug}
	plug.Attach(membuf, obj)
	r.byName[label] = obj
	return obj, nil
}

// Open returns the already-created object registered under label.
func (r *Registry) Open(label string) (*Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.byName[label]
	if !ok {
		return nil, &ErrNotFound{Label: label}
	}
	return obj, nil
}

// Close releases obj's membuf and removes it from the registry's label
// index (its id/label cease to be valid for further Open calls).
func (r *Registry) Close(label string) error {
	r.mu.Lock()
	obj, ok := r.byName[label]
	if !ok {
		r.mu.Unlock()
		return &ErrNotFound{Label: label}
	}
	delete(r.byName, label)
	r.mu.Unlock()
	return obj.Close()
}

// Unlink destroys obj's durable state (if any) and removes it from the
// registry, as Close does.
func (r *Registry) Unlink(label string) error {
	r.mu.Lock()
	obj, ok := r.byName[label]
	if !ok {
		r.mu.Unlock()
		return &ErrNotFound{Label: label}
	}
	delete(r.byName, label)
	r.mu.Unlock()
	return obj.Unlink()
}

// Len reports the number of live objects in the registry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}
