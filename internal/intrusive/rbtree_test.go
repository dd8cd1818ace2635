package intrusive

import (
	"math/rand"
	"testing"
)

func lessInt(a, b int) bool { return a < b }

func TestRBTreeInsertInOrderTraversal(t *testing.T) {
	tr := NewRBTree(lessInt)
	values := []int{5, 1, 9, 3, 7, 2, 8, 4, 6, 0}
	for _, v := range values {
		tr.Insert(v)
	}
	if tr.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", tr.Len(), len(values))
	}

	var got []int
	for n := tr.Min(); n != nil; n = tr.Next(n) {
		got = append(got, n.Value)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("traversal not sorted: %v", got)
		}
	}
	if len(got) != len(values) {
		t.Fatalf("traversal visited %d nodes, want %d", len(got), len(values))
	}
}

func TestRBTreeMinMax(t *testing.T) {
	tr := NewRBTree(lessInt)
	for _, v := range []int{50, 10, 90, 30} {
		tr.Insert(v)
	}
	if tr.Min().Value != 10 {
		t.Fatalf("Min() = %d, want 10", tr.Min().Value)
	}
	if tr.Max().Value != 90 {
		t.Fatalf("Max() = %d, want 90", tr.Max().Value)
	}
}

func TestRBTreeRemoveByNode(t *testing.T) {
	tr := NewRBTree(lessInt)
	nodes := map[int]*RBNode[int]{}
	for _, v := range []int{5, 1, 9, 3, 7, 2, 8, 4, 6, 0} {
		nodes[v] = tr.Insert(v)
	}

	tr.Remove(nodes[3])
	tr.Remove(nodes[9])
	tr.Remove(nodes[0])

	if tr.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", tr.Len())
	}
	var got []int
	for n := tr.Min(); n != nil; n = tr.Next(n) {
		got = append(got, n.Value)
	}
	want := []int{1, 2, 4, 5, 6, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRBTreeRandomizedAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		tr := NewRBTree(lessInt)
		present := map[int]*RBNode[int]{}
		var order []int

		for i := 0; i < 200; i++ {
			v := rng.Intn(500)
			if _, ok := present[v]; ok {
				continue
			}
			present[v] = tr.Insert(v)
			order = append(order, v)
		}

		// remove about half, randomly
		for _, v := range order {
			if rng.Intn(2) == 0 {
				continue
			}
			tr.Remove(present[v])
			delete(present, v)
		}

		if tr.Len() != len(present) {
			t.Fatalf("trial %d: Len() = %d, want %d", trial, tr.Len(), len(present))
		}

		var got []int
		for n := tr.Min(); n != nil; n = tr.Next(n) {
			got = append(got, n.Value)
		}
		if len(got) != len(present) {
			t.Fatalf("trial %d: traversal size %d, want %d", trial, len(got), len(present))
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("trial %d: traversal not strictly sorted: %v", trial, got)
			}
		}
		for v := range present {
			found := false
			for _, g := range got {
				if g == v {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("trial %d: value %d missing from traversal", trial, v)
			}
		}
	}
}
