package lockfree

import "go.uber.org/atomic"

// checkSize implements §4.5's trigger: after every mutating operation, if
// the observed load factor content/size exceeds the configured load, grow.
// Growth is either a cheap logical-modulus doubling (the trie already has
// room to address it) or a trie-growth request that every thread
// discovering it helps complete.
func (m *Map[V]) checkSize() {
	for {
		s := m.size.Load()
		c := m.content.Load()
		if s == 0 || c/int64(s) <= int64(m.load) {
			return
		}
		accessSize := m.accessSize.Load()
		if 2*s <= accessSize {
			if m.size.CompareAndSwap(s, 2*s) {
				m.metrics.resizeFastPath.Inc()
			}
			continue
		}
		target := uint64(m.nbBucket) * accessSize
		if m.resizeTarget.CompareAndSwap(0, target) {
			m.logGrowStart(target)
		}
		m.helpResize(target)
		return
	}
}

// helpResize drives the three-step trie-growth protocol of §4.5 to
// completion, idempotently: any number of concurrent helpers converge on
// the same end state without duplicating work.
func (m *Map[V]) helpResize(target uint64) {
	old := m.access.Load()
	oldAccessSize := m.accessSize.Load()

	newTop := newTrieLevel[V](m.nbBucket)
	allocated := &cellState[V]{kind: cellAllocated, children: old.cells}
	newTop.cells[0].state.Store(allocated)

	var b Backoff
	didWork := false
	for {
		done := true

		if sizeOfAccess(m.access.Load(), m.nbBucket) < target {
			if m.access.CompareAndSwap(old, newTop) {
				didWork = true
			} else {
				done = false
			}
		}
		if m.accessSize.Load() < target {
			if m.accessSize.CompareAndSwap(oldAccessSize, target) {
				didWork = true
			} else {
				done = false
			}
		}
		if m.resizeTarget.Load() == target {
			if m.resizeTarget.CompareAndSwap(target, 0) {
				didWork = true
			} else {
				done = false
			}
		}
		if done {
			break
		}
		b.once()
	}
	// Only a helper that actually won one of the three steps above counts
	// as having performed the growth; a helper that finds every step
	// already done by others just observes convergence and must not
	// double-count the metric or duplicate the diagnostic log.
	if didWork {
		m.metrics.resizeGrowTrie.Inc()
		m.logGrowDone(target)
	}
	m.checkSize()
}

// sizeOfAccess walks slot 0 of a as long as it is Allocated, multiplying
// by nbBucket per level, to recover the trie's current physical depth
// without racing a deeper, already-installed trie backward.
func sizeOfAccess[V any](a *trieLevel[V], nbBucket int) uint64 {
	size := uint64(nbBucket)
	cells := a.cells
	for {
		st := cells[0].load()
		if st == nil || st.kind != cellAllocated {
			return size
		}
		size *= uint64(nbBucket)
		cells = st.children
	}
}

// resizeMetrics counts fast-path modulus doublings separately from full
// trie growths, surfaced via MapCollector.
type resizeMetrics struct {
	resizeFastPath atomic.Uint64
	resizeGrowTrie atomic.Uint64
}
