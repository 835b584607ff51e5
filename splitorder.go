package lockfree

// nodeTag distinguishes a sentinel (bucket anchor) from a regular
// (payload-carrying) node in the shared sorted list. See spec §3.1/§4.3.
type nodeTag uint8

const (
	tagSentinel nodeTag = iota
	tagRegular
)

// sortKey is the order-defining identity of a list node. Sentinels carry
// their bucket index hk verbatim; regular nodes carry the full hash of the
// user key. Comparing under splitCompare places every sentinel for hk
// immediately before any regular node whose hash reduces to hk under some
// power-of-two modulus, without ever moving a regular node when the trie
// grows (§4.4's rationale).
type sortKey struct {
	word uint64
	tag  nodeTag
}

func sentinelKey(hk uint64) sortKey  { return sortKey{word: hk, tag: tagSentinel} }
func regularKey(hash uint64) sortKey { return sortKey{word: hash, tag: tagRegular} }

// splitCompare is the comparator required by §4.2/§4.3: lexicographic
// comparison of the two words' bits, least-significant first, terminating
// once both remaining values are zero, with a tag tie-break when the words
// compare equal. This is the literal pseudocode from §4.3, not a
// fixed-width bit-reversal — see DESIGN.md's note on Open Question 3.
func splitCompare(a, b sortKey) int {
	x, y := a.word, b.word
	for x != 0 || y != 0 {
		xb, yb := x&1, y&1
		if xb != yb {
			if xb < yb {
				return -1
			}
			return 1
		}
		x >>= 1
		y >>= 1
	}
	switch {
	case a.tag == b.tag:
		return 0
	case a.tag == tagSentinel:
		return -1
	default:
		return 1
	}
}
