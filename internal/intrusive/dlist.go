// Package intrusive provides the pointer-light intrusive container building
// blocks the storage engine and block formats are built from: a circular
// doubly-linked list, a red-black tree, and a fixed-stride 16-bit-indexed
// AVL tree over a raw byte block.
//
// Per the design notes, node state is never exposed as a bare pointer across
// a package boundary: DList nodes are struct fields embedded by value in the
// owner type, and AVL16 addresses nodes by a uint16 position into the
// caller-owned block rather than by pointer.
package intrusive

import "unsafe"

// DNode is an intrusive circular doubly-linked list node. Embed it by value
// in the type being linked (e.g. a deque entry or a cache entry) and use the
// DList methods, passing &owner.DNode.
type DNode struct {
	prev, next *DNode
}

// Init resets n to a singleton circular list (prev == next == n).
func (n *DNode) Init() {
	n.prev = n
	n.next = n
}

// Empty reports whether n is a singleton (detached) node.
func (n *DNode) Empty() bool {
	return n.next == n
}

// Next returns the next node in the list.
func (n *DNode) Next() *DNode { return n.next }

// Prev returns the previous node in the list.
func (n *DNode) Prev() *DNode { return n.prev }

// AddFront inserts n immediately after head (i.e. at the front of the list
// whose sentinel is head).
func AddFront(head, n *DNode) {
	n.next = head.next
	n.prev = head
	head.next.prev = n
	head.next = n
}

// AddBack inserts n immediately before head (i.e. at the back of the list
// whose sentinel is head).
func AddBack(head, n *DNode) {
	n.prev = head.prev
	n.next = head
	head.prev.next = n
	head.prev = n
}

// Del removes n from whatever list it is part of and resets it to a
// singleton.
func Del(n *DNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.Init()
}

// MoveToFront removes n from its current position (if any) and reinserts it
// at the front of the list headed by head, in O(1).
func MoveToFront(head, n *DNode) {
	if n.next != n {
		Del(n)
	}
	AddFront(head, n)
}

// MoveToBack removes n from its current position (if any) and reinserts it
// at the back of the list headed by head, in O(1).
func MoveToBack(head, n *DNode) {
	if n.next != n {
		Del(n)
	}
	AddBack(head, n)
}

// Front returns the first node after the sentinel head, or nil if empty.
func Front(head *DNode) *DNode {
	if head.next == head {
		return nil
	}
	return head.next
}

// Back returns the last node before the sentinel head, or nil if empty.
func Back(head *DNode) *DNode {
	if head.prev == head {
		return nil
	}
	return head.prev
}

// Owner recovers a pointer to the T value that embeds n as its first
// field — the container_of half of the intrusive-list pattern the rest of
// this file's DList is built around. Front/Back/Next/Prev hand back a bare
// *DNode; Owner is how a caller (e.g. internal/objects' deque, internal/
// cache's LRU list) gets back the struct it actually cares about, as long
// as that struct embeds DNode by value as its first field.
func Owner[T any](n *DNode) *T {
	return (*T)(unsafe.Pointer(n))
}
