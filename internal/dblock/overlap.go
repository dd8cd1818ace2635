package dblock

// ComputeOverlap classifies the key-range relationship between two blocks
// given each block's first/last key, mirroring z_dblock_overlap. Higher
// layers use this to decide compaction candidacy between adjacent blocks
// without touching either block's contents.
func ComputeOverlap(aFirst, aLast, bFirst, bLast []byte) Overlap {
	if bytesCompare(aLast, bFirst) < 0 {
		return OverlapNoRight
	}
	if bytesCompare(aFirst, bLast) > 0 {
		return OverlapNoLeft
	}
	switch {
	case bytesCompare(aFirst, bFirst) <= 0 && bytesCompare(aLast, bLast) >= 0:
		return OverlapYes
	case bytesCompare(aFirst, bFirst) < 0:
		return OverlapYesLeft
	default:
		return OverlapYesRight
	}
}

// BuildIndex32 produces a sorted slice of KV pairs from m, useful for
// formats (like LogMap) whose on-disk order may be unsorted. Mirrors
// z_dblock_build_index32's role of giving a sorted-iteration view over an
// unsorted block without rewriting it. The AVL formats are walked in order
// in O(n); LogMap records are collected and insertion-sorted, O(n^2) in the
// worst case.
func BuildIndex32(m Map) []KV {
	var out []KV
	switch v := m.(type) {
	case *LogMap:
		off := uint32(logHeaderSize)
		for off < v.used() {
			k, val, next, ok := v.recordAt(off)
			if !ok {
				break
			}
			out = append(out, KV{Key: k, Value: val})
			off = uint32(next)
		}
	case *Avl16Map:
		v.tree.Walk(func(pos uint16) bool {
			k, val := v.recordAt(pos)
			out = append(out, KV{Key: k, Value: val})
			return true
		})
		return out
	case *Avl16eMap:
		v.index.Walk(func(pos uint16) bool {
			k, val := v.recordAt(pos)
			out = append(out, KV{Key: k, Value: val})
			return true
		})
		return out
	default:
		return nil
	}
	sortKVs(out)
	return out
}

func sortKVs(kvs []KV) {
	// insertion sort: BuildIndex32 targets small in-block record counts,
	// and avoids importing sort for one call site.
	for i := 1; i < len(kvs); i++ {
		for j := i; j > 0 && bytesCompare(kvs[j-1].Key, kvs[j].Key) > 0; j-- {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
		}
	}
}
