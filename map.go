// Package lockfree implements a lock-free, concurrent, resizable hash map
// keyed by machine-word integers, using the split-ordered lists technique
// of Shalev & Shavit: a single globally sorted linked list carries every
// key ever inserted, and a lazily-materialized tree of atomic cells maps
// bucket indices to anchor points ("sentinels") within that list. Growing
// the table never reorganizes the list — it only inserts more sentinels.
package lockfree

import (
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Map is a lock-free concurrent map from uint64 keys to values of type V.
// No operation ever blocks another: every mutator makes progress under
// lock-freedom (some thread in the system always completes, even if any
// individual goroutine stalls).
//
// The zero value is not usable; construct with New.
type Map[V any] struct {
	access       atomic.Pointer[trieLevel[V]]
	size         atomic.Uint64
	content      atomic.Int64
	accessSize   atomic.Uint64
	resizeTarget atomic.Uint64 // 0 means "no resize in flight" (see helpResize)

	store *sortedList[V]

	load        int
	nbBucket    int
	hasher      Hasher
	logger      *zap.Logger
	parallelism int

	metrics resizeMetrics
}

// New builds an empty Map. nb_bucket (trie fan-out) defaults to 16 and load
// (target average bucket depth before a resize) defaults to 4; override
// either with WithBucketFanout/WithLoad. Misconfiguration is rejected here
// rather than left undefined (spec §7).
func New[V any](opts ...Option) (*Map[V], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.nbBucket < 2 {
		return nil, ErrBucketFanoutTooSmall
	}
	if cfg.load < 1 {
		return nil, ErrLoadTooSmall
	}

	m := &Map[V]{
		store:       newSortedList[V](),
		load:        cfg.load,
		nbBucket:    cfg.nbBucket,
		hasher:      cfg.hasher,
		logger:      cfg.logger,
		parallelism: cfg.parallelism,
	}

	// Bootstrap: two sentinels (buckets 0 and 1), a root trie level with
	// those two slots Initialized and the rest Uninitialized.
	head := m.store.headHandle()
	_, h0 := m.store.sinsert(head, sentinelKey(0), false, *new(V))
	_, h1 := m.store.sinsert(head, sentinelKey(1), false, *new(V))

	root := newTrieLevel[V](cfg.nbBucket)
	root.cells[0].state.Store(&cellState[V]{kind: cellInitialized, handle: h0})
	root.cells[1].state.Store(&cellState[V]{kind: cellInitialized, handle: h1})

	m.access.Store(root)
	m.size.Store(2)
	m.accessSize.Store(uint64(cfg.nbBucket))

	if cfg.registerer != nil {
		if err := cfg.registerer.Register(m.Collector()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Collector returns a prometheus.Collector reporting this Map's size,
// access_size, content, and resize counters. The caller owns registration.
func (m *Map[V]) Collector() *MapCollector[V] { return newMapCollector(m) }

func (m *Map[V]) bucketOf(key uint64) (hk uint64, hash uint64) {
	hash = m.hasher(key)
	return hash % m.size.Load(), hash
}

func (m *Map[V]) sentinelFor(hk uint64) handle[V] {
	return m.getBucket(m.access.Load(), m.accessSize.Load(), m.nbBucket, hk)
}

// Find returns the value stored for key, and whether it was present.
func (m *Map[V]) Find(key uint64) (V, bool) {
	m.checkSize()
	hk, hash := m.bucketOf(key)
	h := m.sentinelFor(hk)
	return m.store.find(h, regularKey(hash))
}

// Mem reports whether key is present.
func (m *Map[V]) Mem(key uint64) bool {
	m.checkSize()
	hk, hash := m.bucketOf(key)
	h := m.sentinelFor(hk)
	return m.store.mem(h, regularKey(hash))
}

// Add inserts key/value if key is not already present. If key already
// exists, Add leaves its current value untouched (no overwrite — see
// DESIGN.md's resolution of Open Question 1); Add returns nothing either way.
func (m *Map[V]) Add(key uint64, value V) {
	hk, hash := m.bucketOf(key)
	h := m.sentinelFor(hk)
	isNew, _ := m.store.sinsert(h, regularKey(hash), true, value)
	if isNew {
		m.content.Inc()
	}
	m.checkSize()
}

// Remove deletes key if present, reporting whether it was.
func (m *Map[V]) Remove(key uint64) bool {
	hk, hash := m.bucketOf(key)
	h := m.sentinelFor(hk)
	ok := m.store.sdelete(h, regularKey(hash))
	if ok {
		m.content.Dec()
	}
	m.checkSize()
	return ok
}

// Elements returns every value currently live in the map, in no particular
// order. It is a best-effort traversal, not a consistent snapshot (spec
// §4.2/§9): a key added or removed mid-call may or may not appear. With
// WithParallelism(n > 1), the traversal is split across n goroutines.
func (m *Map[V]) Elements() []V {
	if m.parallelism > 1 {
		return m.store.elementsParallel(m.parallelism)
	}
	return m.store.elements()
}

// Len returns the approximate number of live elements (spec §3.3
// invariant 6 / §5: eventually consistent, not linearizable).
func (m *Map[V]) Len() int {
	return int(m.content.Load())
}

// String renders every element via render, for debugging only — it is
// explicitly not part of the concurrent contract (spec §6.2).
func (m *Map[V]) String(render func(V) string) string {
	var b strings.Builder
	b.WriteString("lockfree.Map{")
	for i, v := range m.Elements() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(render(v))
	}
	b.WriteString("}")
	return b.String()
}

func (m *Map[V]) logGrowStart(target uint64) {
	m.logger.Debug("lockfree: trie growth requested", zap.Uint64("target_access_size", target))
}

func (m *Map[V]) logGrowDone(target uint64) {
	m.logger.Debug("lockfree: trie growth complete", zap.Uint64("access_size", target))
}
