package intrusive

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

// avl16 test stride: 7-byte link header + 4-byte uint32 key payload.
const testStride = avl16LinkSize + 4

func newTestAVL16(capacity int) *AVL16 {
	block := make([]byte, avl16HeadSize+capacity*testStride)
	return Init(block, testStride)
}

func keyAt(tr *AVL16, pos uint16) uint32 {
	return binary.LittleEndian.Uint32(tr.Payload(pos))
}

func cmpKey(tr *AVL16, key uint32) Cmp {
	return func(pos uint16) int {
		k := keyAt(tr, pos)
		switch {
		case k < key:
			return -1
		case k > key:
			return 1
		default:
			return 0
		}
	}
}

func insertKey(tr *AVL16, key uint32) (uint16, bool) {
	return tr.Insert(cmpKey(tr, key), func(payload []byte) {
		binary.LittleEndian.PutUint32(payload, key)
	})
}

func TestAVL16InsertFindInOrder(t *testing.T) {
	tr := newTestAVL16(64)
	keys := []uint32{50, 10, 90, 30, 70, 20, 80, 40, 60, 0}
	for _, k := range keys {
		if _, ok := insertKey(tr, k); !ok {
			t.Fatalf("insert %d failed", k)
		}
	}

	for _, k := range keys {
		pos, found := tr.Find(cmpKey(tr, k))
		if !found {
			t.Fatalf("key %d not found", k)
		}
		if keyAt(tr, pos) != k {
			t.Fatalf("key mismatch at found pos")
		}
	}

	if _, found := tr.Find(cmpKey(tr, 999)); found {
		t.Fatalf("unexpected key found")
	}

	var got []uint32
	tr.Walk(func(pos uint16) bool {
		got = append(got, keyAt(tr, pos))
		return true
	})
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("walk not sorted: %v", got)
		}
	}
	if len(got) != len(keys) {
		t.Fatalf("walk visited %d, want %d", len(got), len(keys))
	}
}

func TestAVL16MinMaxSeekNextPrev(t *testing.T) {
	tr := newTestAVL16(64)
	for _, k := range []uint32{50, 10, 90, 30, 70} {
		insertKey(tr, k)
	}

	if keyAt(tr, tr.Min()) != 10 {
		t.Fatalf("Min() key = %d, want 10", keyAt(tr, tr.Min()))
	}
	if keyAt(tr, tr.Max()) != 90 {
		t.Fatalf("Max() key = %d, want 90", keyAt(tr, tr.Max()))
	}

	seekPos := tr.Seek(cmpKey(tr, 40))
	if seekPos == 0 || keyAt(tr, seekPos) != 50 {
		t.Fatalf("Seek(40) = %d, want 50", keyAt(tr, seekPos))
	}

	p30, _ := tr.Find(cmpKey(tr, 30))
	next := tr.Next(p30)
	if keyAt(tr, next) != 50 {
		t.Fatalf("Next(30) = %d, want 50", keyAt(tr, next))
	}
	prev := tr.Prev(p30)
	if keyAt(tr, prev) != 10 {
		t.Fatalf("Prev(30) = %d, want 10", keyAt(tr, prev))
	}
}

func TestAVL16RemoveMaintainsOrder(t *testing.T) {
	tr := newTestAVL16(64)
	keys := []uint32{50, 10, 90, 30, 70, 20, 80, 40, 60, 0}
	for _, k := range keys {
		insertKey(tr, k)
	}

	for _, k := range []uint32{30, 90, 0} {
		if !tr.Remove(cmpKey(tr, k)) {
			t.Fatalf("remove %d failed", k)
		}
	}

	remaining := map[uint32]bool{10: true, 20: true, 40: true, 50: true, 60: true, 70: true, 80: true}
	var got []uint32
	tr.Walk(func(pos uint16) bool {
		got = append(got, keyAt(tr, pos))
		return true
	})
	if len(got) != len(remaining) {
		t.Fatalf("got %v, want %d keys", got, len(remaining))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("walk not sorted after remove: %v", got)
		}
	}
	for _, k := range got {
		if !remaining[k] {
			t.Fatalf("unexpected key %d present after remove", k)
		}
	}

	if tr.Remove(cmpKey(tr, 999)) {
		t.Fatalf("remove of absent key reported success")
	}
}

func TestAVL16AllocReuseAfterRemove(t *testing.T) {
	tr := newTestAVL16(4)
	for _, k := range []uint32{1, 2, 3, 4} {
		if _, ok := insertKey(tr, k); !ok {
			t.Fatalf("insert %d failed", k)
		}
	}
	if _, ok := insertKey(tr, 5); ok {
		t.Fatalf("expected insert to fail once block is full")
	}
	if !tr.Remove(cmpKey(tr, 2)) {
		t.Fatalf("remove failed")
	}
	if _, ok := insertKey(tr, 5); !ok {
		t.Fatalf("expected insert to reuse freed slot")
	}
}

func TestAVL16RandomizedAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		tr := newTestAVL16(300)
		present := map[uint32]bool{}
		var order []uint32

		for i := 0; i < 200; i++ {
			k := uint32(rng.Intn(1000))
			if present[k] {
				continue
			}
			if _, ok := insertKey(tr, k); !ok {
				t.Fatalf("trial %d: insert failed unexpectedly", trial)
			}
			present[k] = true
			order = append(order, k)
		}

		for _, k := range order {
			if rng.Intn(2) == 0 {
				continue
			}
			if !tr.Remove(cmpKey(tr, k)) {
				t.Fatalf("trial %d: remove %d failed", trial, k)
			}
			delete(present, k)
		}

		var got []uint32
		tr.Walk(func(pos uint16) bool {
			got = append(got, keyAt(tr, pos))
			return true
		})
		if len(got) != len(present) {
			t.Fatalf("trial %d: walk size %d, want %d", trial, len(got), len(present))
		}
		for i := 1; i < len(got); i++ {
			if got[i-1] >= got[i] {
				t.Fatalf("trial %d: walk not sorted: %v", trial, got)
			}
		}
		for _, k := range got {
			if !present[k] {
				t.Fatalf("trial %d: unexpected key %d", trial, k)
			}
		}
	}
}
