// Package dblock implements the on-disk block map formats a storage page is
// built from: an append-only log, an in-block AVL tree with inlined
// records, and an AVL tree over an external index pointing into a log
// region. All three share one vtable so higher layers (the object engine's
// page store) can pick a format per page without caring which one backs it.
package dblock

// SeekPos selects the comparison a Seek call should satisfy relative to the
// given key.
type SeekPos int

const (
	SeekBegin SeekPos = iota
	SeekEnd
	SeekLT
	SeekLE
	SeekGT
	SeekGE
	SeekEQ
)

// Overlap describes how two blocks' key ranges relate, given each block's
// first/last key.
type Overlap int

const (
	OverlapNoLeft Overlap = iota
	OverlapNoRight
	OverlapYesLeft
	OverlapYesRight
	OverlapYes
)

// Stats summarizes a block's occupancy.
type Stats struct {
	Count     int
	UsedBytes int
	FreeBytes int
}

// KV is a key/value pair returned by Seek and iteration helpers.
type KV struct {
	Key   []byte
	Value []byte
}

// Map is the common vtable all three block formats implement.
type Map interface {
	// Init formats block as an empty map of this format.
	Init(block []byte)

	Lookup(key []byte) (value []byte, ok bool)
	FirstKey() ([]byte, bool)
	LastKey() ([]byte, bool)

	// Seek returns the first KV satisfying pos relative to key. For
	// SeekBegin/SeekEnd, key is ignored.
	Seek(pos SeekPos, key []byte) (KV, bool)

	// Insert adds key/value. The AVL formats keep it in sorted position;
	// the log format appends it at the tail and only tracks the first/last
	// keys. Append/Prepend are insert fast paths for callers that already
	// know the key falls at the current end/start of the map's range.
	Insert(key, value []byte) error
	Append(key, value []byte) error
	Prepend(key, value []byte) error

	Remove(key []byte) error
	Replace(key, value []byte) error

	HasSpace(key, value []byte) bool
	MaxOverhead() int
	Stats() Stats
}

// Errors returned by Map implementations, wrapped via raleighsl.WrapError
// by callers that need the root-package error taxonomy.
var (
	ErrNoSpace   = mapError("no space")
	ErrNotFound  = mapError("key not found")
	ErrEmptyMap  = mapError("map has no entries")
	ErrBadFormat = mapError("malformed block")
)

type mapError string

func (e mapError) Error() string { return string(e) }
