package lockfree

import (
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// nextRef is a node's forward pointer and its logical-deletion mark,
// carried together as one immutable value so both move in a single CAS
// (Harris-Michael: the mark lives *in* the next pointer, not in a field
// disjoint from it). Marking a node deleted replaces its own nextRef with
// one that has the same next but deleted=true; any concurrent insert that
// tries to link a new node after that node CASes against the old nextRef
// and fails, forcing a retry instead of silently attaching itself behind
// a node the list is about to drop.
type nextRef[V any] struct {
	next    *listNode[V]
	deleted bool
}

// listNode is one node of the shared sorted list (C2). Regular nodes
// carry a payload; sentinels never do.
type listNode[V any] struct {
	key    sortKey
	hasVal bool
	val    V
	next   atomic.Pointer[nextRef[V]]
}

// handle is the non-owning reference the access trie stores for a
// sentinel, and the node reference sinsert and search hand back. Its validity
// follows from the sorted list never physically freeing sentinel nodes
// (invariant 4 in spec §3.3).
type handle[V any] = *listNode[V]

// sortedList is the required C2 collaborator: a singly-linked list sorted
// by splitCompare, supporting concurrent sinsert/sdelete/find/mem starting
// either from the true head or from a caller-supplied handle (§4.2's
// per-segment search requirement, used by get_bucket to confine a lookup
// to one bucket's segment instead of degrading to O(N)).
type sortedList[V any] struct {
	head listNode[V] // fake head: its key is never compared (search only examines nodes after start)
}

func newSortedList[V any]() *sortedList[V] {
	l := &sortedList[V]{}
	l.head.key = sortKey{} // tagSentinel, word 0 (same as sentinelKey(0)); never compared
	l.head.next.Store(&nextRef[V]{})
	return l
}

// headHandle returns the list's fake head, the start handle for a
// whole-list search (used only to bootstrap the first two sentinels; every
// other operation searches from a bucket's own sentinel handle).
func (l *sortedList[V]) headHandle() handle[V] { return &l.head }

// search returns (pred, curr, predRef) such that pred.key < key <= curr.key,
// physically unlinking any logically-deleted nodes it passes over along
// the way. predRef is the exact nextRef value observed on pred at the
// moment curr was read, for callers (sinsert) that need to CAS against it
// atomically with the mark it carries. start must be a node already known
// to be <= key (the true head, or a sentinel handle for per-bucket
// search).
func (l *sortedList[V]) search(start handle[V], key sortKey) (pred, curr handle[V], predRef *nextRef[V]) {
	var b Backoff
retry:
	pred = start
	predRef = pred.next.Load()
	curr = predRef.next
	for curr != nil {
		currRef := curr.next.Load()
		if currRef.deleted {
			unlinked := &nextRef[V]{next: currRef.next}
			if !pred.next.CompareAndSwap(predRef, unlinked) {
				b.once()
				goto retry
			}
			predRef = unlinked
			curr = currRef.next
			continue
		}
		if splitCompare(curr.key, key) >= 0 {
			return pred, curr, predRef
		}
		pred = curr
		predRef = currRef
		curr = currRef.next
	}
	return pred, curr, predRef
}

// sinsert inserts x if no node with cmp=0 exists yet, starting the search
// at start. Returns whether it created a new node, and the handle of the
// node now holding that key (new or pre-existing). The link-in CAS targets
// pred's whole nextRef (pointer + mark together): if pred is concurrently
// marked deleted, that CAS fails and sinsert retries from a fresh search
// instead of linking the new node behind a predecessor that is about to be
// spliced out of the list.
func (l *sortedList[V]) sinsert(start handle[V], key sortKey, hasVal bool, val V) (isNew bool, h handle[V]) {
	var b Backoff
	for {
		pred, curr, predRef := l.search(start, key)
		if curr != nil && splitCompare(curr.key, key) == 0 {
			return false, curr
		}
		n := &listNode[V]{key: key, hasVal: hasVal, val: val}
		n.next.Store(&nextRef[V]{next: curr})
		if pred.next.CompareAndSwap(predRef, &nextRef[V]{next: n}) {
			return true, n
		}
		b.once()
	}
}

// sdelete logically marks the first node with cmp=0 as deleted, by CASing
// that node's own nextRef (same next, deleted=true) rather than a field
// disjoint from it — see nextRef's doc comment. Returns whether it found
// and deleted such a node.
func (l *sortedList[V]) sdelete(start handle[V], key sortKey) bool {
	var b Backoff
	for {
		_, curr, _ := l.search(start, key)
		if curr == nil || splitCompare(curr.key, key) != 0 {
			return false
		}
		currRef := curr.next.Load()
		if currRef.deleted {
			return false
		}
		marked := &nextRef[V]{next: currRef.next, deleted: true}
		if curr.next.CompareAndSwap(currRef, marked) {
			// Best-effort physical unlink; if this loses the race, a later
			// search starting anywhere before curr unlinks it lazily.
			l.unlinkOnce(start, curr)
			return true
		}
		b.once()
	}
}

// unlinkOnce makes one attempt to splice a just-deleted node out of the
// list. search() itself skips over and unlinks any deleted node it
// traverses, so re-running it from start is enough to physically remove
// target; the call is always safe to skip entirely, since any later
// search starting before target unlinks it lazily on its own.
func (l *sortedList[V]) unlinkOnce(start handle[V], target handle[V]) {
	l.search(start, target.key)
}

// find returns the payload of the first live node with cmp=0, if any.
func (l *sortedList[V]) find(start handle[V], key sortKey) (V, bool) {
	_, curr, _ := l.search(start, key)
	var zero V
	if curr == nil || splitCompare(curr.key, key) != 0 || curr.next.Load().deleted {
		return zero, false
	}
	return curr.val, true
}

// mem reports whether a live node with cmp=0 exists.
func (l *sortedList[V]) mem(start handle[V], key sortKey) bool {
	_, curr, _ := l.search(start, key)
	return curr != nil && splitCompare(curr.key, key) == 0 && !curr.next.Load().deleted
}

// elements is a best-effort, non-consistent traversal of every live
// regular node's payload (§4.2's "not required to be a consistent
// snapshot").
func (l *sortedList[V]) elements() []V {
	var out []V
	for n := l.head.next.Load().next; n != nil; {
		ref := n.next.Load()
		if n.hasVal && !ref.deleted {
			out = append(out, n.val)
		}
		n = ref.next
	}
	return out
}

// elementsParallel is the WithParallelism traversal backing Elements: a
// shared cursor advanced by CAS so that workers split the list between
// them without locking, each collecting its own shard before the results
// are concatenated. Order across shards is unspecified, same as elements.
func (l *sortedList[V]) elementsParallel(workers int) []V {
	var cursor atomic.Pointer[listNode[V]]
	cursor.Store(l.head.next.Load().next)

	shards := make([][]V, workers)
	g := new(errgroup.Group)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			var out []V
			for {
				n := cursor.Load()
				if n == nil {
					break
				}
				ref := n.next.Load()
				if !cursor.CompareAndSwap(n, ref.next) {
					continue
				}
				if n.hasVal && !ref.deleted {
					out = append(out, n.val)
				}
			}
			shards[w] = out
			return nil
		})
	}
	_ = g.Wait()

	var out []V
	for _, s := range shards {
		out = append(out, s...)
	}
	return out
}
