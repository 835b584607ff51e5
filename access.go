package lockfree

import (
	"math/bits"

	"go.uber.org/atomic"
)

// cellKind is the tag of the three-variant sum type described in spec
// §3.2/§9: an AccessCell is Uninitialized, Allocated (holds a deeper
// array of cells), or Initialized (holds a handle to a sentinel). The
// variant and its payload are captured together in one immutable
// cellState so the whole cell transitions via a single CAS.
type cellKind uint8

const (
	cellUninitialized cellKind = iota
	cellAllocated
	cellInitialized
)

// cellState is the immutable payload a cellSlot's atomic pointer refers
// to. A nil *cellState means Uninitialized — no allocation is needed for
// the overwhelmingly common case of a cell nobody has touched yet.
type cellState[V any] struct {
	kind     cellKind
	children []cellSlot[V] // len == nbBucket, valid iff kind == cellAllocated
	handle   handle[V]     // valid iff kind == cellInitialized
}

// cellSlot is one atomically-CAS'd AccessCell.
type cellSlot[V any] struct {
	state atomic.Pointer[cellState[V]]
}

func (c *cellSlot[V]) load() *cellState[V] { return c.state.Load() }

// trieLevel is the top array of an access trie generation: nbBucket cells,
// replaced wholesale (not mutated in place) whenever C4 grows the trie.
type trieLevel[V any] struct {
	cells []cellSlot[V]
}

func newTrieLevel[V any](nbBucket int) *trieLevel[V] {
	return &trieLevel[V]{cells: make([]cellSlot[V], nbBucket)}
}

func newChildren[V any](nbBucket int) []cellSlot[V] {
	return make([]cellSlot[V], nbBucket)
}

// getBucket resolves a bucket index to its sentinel handle, lazily
// materializing any Uninitialized cell along the way (spec §4.4). hk is a
// mixed-radix number in base nbBucket with log_nbBucket(accessSize)
// digits; levelCap is the place value of the digit selected at the
// current level. hk itself is never rewritten during descent — only
// levelCap shrinks — so the value reaching initCell at the leaf is always
// the true global bucket index, never a partially-reduced remainder.
func (m *Map[V]) getBucket(root *trieLevel[V], accessSize uint64, nbBucket int, hk uint64) handle[V] {
	cells := root.cells
	levelCap := accessSize / uint64(nbBucket)
	for {
		slot := (hk / levelCap) % uint64(nbBucket)
		cell := &cells[slot]
		st := cell.load()
		switch {
		case st == nil:
			m.initCell(cell, hk, levelCap, nbBucket)
			// retry the read of this same cell; some thread (possibly us)
			// has installed a non-nil state by now.
			continue
		case st.kind == cellInitialized:
			return st.handle
		case st.kind == cellAllocated:
			cells = st.children
			levelCap /= uint64(nbBucket)
		}
	}
}

// initCell performs the Uninitialized transition for one cell: either
// allocating a deeper child array, or, at the leaf, inserting the
// sentinel for hk into the shared list and installing its handle. hk is
// always the true global bucket index (see getBucket). A lost CAS here is
// always fine — the winner's allocation (or sentinel) is exactly as good
// as the one this goroutine would have installed.
func (m *Map[V]) initCell(cell *cellSlot[V], hk, levelCap uint64, nbBucket int) {
	if levelCap > 1 {
		fresh := &cellState[V]{kind: cellAllocated, children: newChildren[V](nbBucket)}
		cell.state.CompareAndSwap(nil, fresh)
		return
	}
	parentHk := parentBucket(hk)
	parentHandle := m.getBucket(m.access.Load(), m.accessSize.Load(), nbBucket, parentHk)
	_, h := m.store.sinsert(parentHandle, sentinelKey(hk), false, *new(V))
	fresh := &cellState[V]{kind: cellInitialized, handle: h}
	cell.state.CompareAndSwap(nil, fresh)
}

// parentBucket clears hk's highest set bit: the bucket that hk was split
// out of when the trie grew deep enough to address it. hk must be >= 2;
// buckets 0 and 1 are installed directly at Map creation and never reach
// this path.
func parentBucket(hk uint64) uint64 {
	p := uint64(1) << uint(bits.Len64(hk)-1)
	return hk - p
}
