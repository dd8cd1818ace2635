// Package vtask implements the virtual-task tree: a red-black tree keyed
// lexicographically on (vtime, seqid) with an O(1) cached minimum, used by
// internal/sched to order timer-like deferred work. Grounded on
// zcl/dispatch/vtask-tree.c, reimplemented over internal/intrusive.RBTree
// instead of the original's hand-rolled intrusive red-black links.
package vtask

import "github.com/raleighsl/raleighsl/internal/intrusive"

// Key orders tasks first by virtual time, then by a monotonically assigned
// sequence id that breaks ties between tasks scheduled for the same vtime.
type Key struct {
	VTime uint64
	SeqID uint64
}

func less(a, b Key) bool {
	if a.VTime != b.VTime {
		return a.VTime < b.VTime
	}
	return a.SeqID < b.SeqID
}

// Task is one entry in the tree. Cancelled is set in bulk by CancelAll; it
// is the caller's (scheduler's) job to check it when a task is fetched and
// skip execution rather than have the tree itself drop cancelled entries,
// matching z_vtask_tree's "flag, don't remove" cancellation.
type Task struct {
	Key       Key
	Cancelled bool
	Value     any

	node *intrusive.RBNode[*Task]
}

// Tree is the vtask red-black tree with a cached minimum.
type Tree struct {
	rb  *intrusive.RBTree[*Task]
	min *intrusive.RBNode[*Task]
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{rb: intrusive.NewRBTree(func(a, b *Task) bool { return less(a.Key, b.Key) })}
}

// Len returns the number of tasks currently in the tree.
func (t *Tree) Len() int { return t.rb.Len() }

// Push inserts task, updating the cached minimum in O(1) if task sorts
// before the current minimum (or the tree was empty).
func (t *Tree) Push(task *Task) {
	n := t.rb.Insert(task)
	task.node = n
	if t.min == nil || less(task.Key, t.min.Value.Key) {
		t.min = n
	}
}

// Peek returns the minimum task without removing it, or nil if empty.
func (t *Tree) Peek() *Task {
	if t.min == nil {
		return nil
	}
	return t.min.Value
}

// Pop removes and returns the minimum task, advancing the cached minimum to
// its in-order successor. Returns nil if the tree is empty.
func (t *Tree) Pop() *Task {
	if t.min == nil {
		return nil
	}
	n := t.min
	t.min = t.rb.Next(n)
	task := n.Value
	t.rb.Remove(n)
	task.node = nil
	return task
}

// Remove deletes a specific, possibly non-minimum, task from the tree
// (e.g. a timer being cancelled and reclaimed before it fires).
func (t *Tree) Remove(task *Task) {
	if task.node == nil {
		return
	}
	if task.node == t.min {
		t.min = t.rb.Next(task.node)
	}
	t.rb.Remove(task.node)
	task.node = nil
}

// CancelAll flags every task currently in the tree as cancelled without
// removing any of them; the scheduler observes the flag when it fetches a
// task and drops it instead of executing.
func (t *Tree) CancelAll() {
	for n := t.rb.Min(); n != nil; n = t.rb.Next(n) {
		n.Value.Cancelled = true
	}
}
