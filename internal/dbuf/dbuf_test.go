package dbuf

import (
	"bytes"
	"testing"
)

type fakeRef struct {
	incs, decs int
}

func (f *fakeRef) IncRef() { f.incs++ }
func (f *fakeRef) DecRef() { f.decs++ }

func TestWriterAddCoalescesIntoDataRecords(t *testing.T) {
	w := NewWriter(NodeSize64)
	w.Add([]byte("hello "))
	w.Add([]byte("world"))

	if w.Len() != len("hello world") {
		t.Fatalf("Len() = %d, want %d", w.Len(), len("hello world"))
	}

	r := NewReader(w)
	iovs := r.IOVecs(NIOVS)
	var got []byte
	for _, b := range iovs {
		got = append(got, b...)
	}
	if !bytes.Equal(got, []byte("hello world")) {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestWriterSpansMultipleNodes(t *testing.T) {
	w := NewWriter(NodeSize64)
	payload := bytes.Repeat([]byte("x"), 200)
	w.Add(payload)

	if w.Len() != len(payload) {
		t.Fatalf("Len() = %d, want %d", w.Len(), len(payload))
	}

	r := NewReader(w)
	var got []byte
	for _, b := range r.IOVecs(NIOVS) {
		got = append(got, b...)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch across node boundary")
	}
}

func TestAddRefIncDecRefExactlyOnce(t *testing.T) {
	w := NewWriter(NodeSize64)
	ref := &fakeRef{}
	external := []byte("external-memory")
	w.Add([]byte("prefix:"))
	w.AddRef(external, ref)
	w.Add([]byte(":suffix"))

	if ref.incs != 1 {
		t.Fatalf("IncRef called %d times, want 1", ref.incs)
	}

	r := NewReader(w)
	total := w.Len()
	r.Remove(total)

	if ref.decs != 1 {
		t.Fatalf("DecRef called %d times, want 1", ref.decs)
	}
}

func TestMarkWritePatchesReservedRegion(t *testing.T) {
	w := NewWriter(NodeSize64)
	mark := w.Mark(4)
	w.Add([]byte("-body"))
	mark.Write([]byte("HEAD"))

	r := NewReader(w)
	var got []byte
	for _, b := range r.IOVecs(NIOVS) {
		got = append(got, b...)
	}
	if !bytes.Equal(got, []byte("HEAD-body")) {
		t.Fatalf("got %q, want %q", got, "HEAD-body")
	}
}

func TestReaderRemovePartialAdvancesCursor(t *testing.T) {
	w := NewWriter(NodeSize64)
	w.Add([]byte("0123456789"))

	r := NewReader(w)
	r.Remove(4)
	if w.Len() != 6 {
		t.Fatalf("Len() after partial Remove = %d, want 6", w.Len())
	}

	var got []byte
	for _, b := range r.IOVecs(NIOVS) {
		got = append(got, b...)
	}
	if !bytes.Equal(got, []byte("456789")) {
		t.Fatalf("got %q, want %q", got, "456789")
	}
}

func TestReaderRemoveRecyclesFullyConsumedNodes(t *testing.T) {
	w := NewWriter(NodeSize64)
	payload := bytes.Repeat([]byte("y"), 150)
	w.Add(payload)

	r := NewReader(w)
	r.Remove(len(payload))

	if w.Len() != 0 {
		t.Fatalf("Len() = %d after full Remove, want 0", w.Len())
	}
	if w.head != nil {
		t.Fatalf("expected head to be nil after full drain")
	}

	// writer should be reusable after a full drain.
	w.Add([]byte("more"))
	r2 := NewReader(w)
	var got []byte
	for _, b := range r2.IOVecs(NIOVS) {
		got = append(got, b...)
	}
	if !bytes.Equal(got, []byte("more")) {
		t.Fatalf("got %q after reuse, want %q", got, "more")
	}
}
