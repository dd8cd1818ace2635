package objects

import (
	"sync"

	"github.com/raleighsl/raleighsl/internal/objectengine"
)

// Counter is Number's "pre-txn" sibling: the same get/set/add/mul/cas
// surface minus div, and without transaction participation at all — it
// predates the transaction engine in the original and every write is
// effectively auto-commit. Grounded on objects/counter/counter.c.
type Counter struct {
	mu    sync.Mutex
	value int64
}

// CounterPlug is the objectengine.Plug for the "counter" type. Its
// apply/revert/commit/rollback hooks are all no-ops: a Counter never
// registers atoms, so the transaction engine never calls them for one.
var CounterPlug = counterPlug{}

type counterPlug struct{}

func (counterPlug) Label() string { return "counter" }

func (counterPlug) Create() (objectengine.Membuf, error) {
	return &Counter{}, nil
}

func (counterPlug) Attach(objectengine.Membuf, *objectengine.Object) {}
func (counterPlug) Close(objectengine.Membuf) error                  { return nil }
func (counterPlug) Sync(objectengine.Membuf) error                   { return nil }
func (counterPlug) Unlink(objectengine.Membuf) error                 { return nil }
func (counterPlug) Commit(objectengine.Membuf) error                 { return nil }
func (counterPlug) Rollback(objectengine.Membuf) error               { return nil }
func (counterPlug) Apply(objectengine.Membuf, any) error             { return nil }
func (counterPlug) Revert(objectengine.Membuf, any) error            { return nil }

func (c *Counter) Get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Counter) Set(value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

func (c *Counter) Add(delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	return c.value
}

func (c *Counter) Mul(factor int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value *= factor
	return c.value
}

// CAS compares the current value against old and, on match, assigns new,
// returning the value observed at comparison time.
func (c *Counter) CAS(old, new int64) (current int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != old {
		return c.value, ErrDataCAS
	}
	c.value = new
	return old, nil
}
