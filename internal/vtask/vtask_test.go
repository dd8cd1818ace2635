package vtask

import (
	"math/rand"
	"sort"
	"testing"
)

func TestTreePushPopOrdersByVTimeThenSeqID(t *testing.T) {
	tr := New()
	tasks := []*Task{
		{Key: Key{VTime: 10, SeqID: 2}},
		{Key: Key{VTime: 5, SeqID: 1}},
		{Key: Key{VTime: 10, SeqID: 1}},
		{Key: Key{VTime: 1, SeqID: 9}},
	}
	for _, tk := range tasks {
		tr.Push(tk)
	}
	want := []Key{{1, 9}, {5, 1}, {10, 1}, {10, 2}}
	for i, w := range want {
		got := tr.Pop()
		if got == nil || got.Key != w {
			t.Fatalf("pop %d: got %+v, want %+v", i, got, w)
		}
	}
	if tr.Pop() != nil {
		t.Fatalf("expected empty tree")
	}
}

func TestTreePeekDoesNotRemove(t *testing.T) {
	tr := New()
	tr.Push(&Task{Key: Key{VTime: 3, SeqID: 0}})
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	p := tr.Peek()
	if p == nil || p.Key.VTime != 3 {
		t.Fatalf("Peek() = %+v", p)
	}
	if tr.Len() != 1 {
		t.Fatalf("Peek should not remove; Len() = %d", tr.Len())
	}
}

func TestTreeRemoveNonMinimum(t *testing.T) {
	tr := New()
	a := &Task{Key: Key{VTime: 1, SeqID: 0}}
	b := &Task{Key: Key{VTime: 2, SeqID: 0}}
	c := &Task{Key: Key{VTime: 3, SeqID: 0}}
	tr.Push(a)
	tr.Push(b)
	tr.Push(c)
	tr.Remove(b)
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	first := tr.Pop()
	if first != a {
		t.Fatalf("expected a first, got %+v", first)
	}
	second := tr.Pop()
	if second != c {
		t.Fatalf("expected c second, got %+v", second)
	}
}

func TestTreeRemoveMinimumAdvancesCache(t *testing.T) {
	tr := New()
	a := &Task{Key: Key{VTime: 1, SeqID: 0}}
	b := &Task{Key: Key{VTime: 2, SeqID: 0}}
	tr.Push(a)
	tr.Push(b)
	tr.Remove(a)
	if got := tr.Peek(); got != b {
		t.Fatalf("Peek() = %+v, want b", got)
	}
}

func TestCancelAllFlagsWithoutRemoving(t *testing.T) {
	tr := New()
	tasks := []*Task{
		{Key: Key{VTime: 1, SeqID: 0}},
		{Key: Key{VTime: 2, SeqID: 0}},
		{Key: Key{VTime: 3, SeqID: 0}},
	}
	for _, tk := range tasks {
		tr.Push(tk)
	}
	tr.CancelAll()
	if tr.Len() != 3 {
		t.Fatalf("CancelAll must not remove tasks; Len() = %d", tr.Len())
	}
	for _, tk := range tasks {
		if !tk.Cancelled {
			t.Fatalf("task %+v not flagged cancelled", tk.Key)
		}
	}
}

func TestTreeRandomizedAgainstReference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	tr := New()
	var ref []Key
	for i := 0; i < 500; i++ {
		k := Key{VTime: uint64(r.Intn(50)), SeqID: uint64(i)}
		tr.Push(&Task{Key: k})
		ref = append(ref, k)
	}
	sort.Slice(ref, func(i, j int) bool { return less(ref[i], ref[j]) })
	for i, want := range ref {
		got := tr.Pop()
		if got == nil || got.Key != want {
			t.Fatalf("pop %d: got %+v, want %+v", i, got, want)
		}
	}
	if tr.Pop() != nil {
		t.Fatalf("expected empty tree at end")
	}
}
