package cache

import "github.com/raleighsl/raleighsl/internal/intrusive"

// LRUPolicy is a single doubly-linked list, move-to-front on touch,
// evicting from the tail — spec.md §4.10's "LRU (single doubly-linked
// list, move-to-front on touch)".
type LRUPolicy struct {
	head intrusive.DNode
}

// NewLRU returns an empty LRU policy.
func NewLRU() *LRUPolicy {
	p := &LRUPolicy{}
	p.head.Init()
	return p
}

func (p *LRUPolicy) onInsert(e *Entry) {
	e.state = StateInLRU
	intrusive.AddFront(&p.head, &e.link)
}

func (p *LRUPolicy) onTouch(e *Entry) {
	intrusive.MoveToFront(&p.head, &e.link)
}

func (p *LRUPolicy) onRemove(e *Entry) {
	if !e.link.Empty() {
		intrusive.Del(&e.link)
	}
}

func (p *LRUPolicy) evict(c *Cache, pred EvictFunc) int {
	n := 0
	for node := intrusive.Back(&p.head); node != nil; node = intrusive.Back(&p.head) {
		e := intrusive.Owner[Entry](node)
		if !pred(c.used, e) {
			break
		}
		c.removeLocked(e)
		n++
	}
	return n
}
