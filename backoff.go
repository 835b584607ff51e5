package lockfree

import (
	"math/rand"
	"runtime"
	"time"
)

// Backoff is a stateful exponential backoff helper for CAS retry loops. It
// is not correctness-critical: every loop that uses it would eventually
// make progress by spinning alone. Backoff only exists to keep contended
// retries from burning a core busy-waiting against other racing goroutines.
type Backoff struct {
	attempt int
}

const (
	backoffSchedRounds = 8  // attempts spent yielding the scheduler before sleeping
	backoffSleepBase   = 50 * time.Microsecond
	backoffSleepCap    = 8 * time.Millisecond
)

// once pauses the caller for a duration drawn from a doubling window, then
// advances the backoff's internal state. Cheap contention resolves with a
// handful of scheduler yields; a CAS loop that keeps losing past that point
// sleeps for a short, jittered, exponentially growing interval.
func (b *Backoff) once() {
	if b.attempt < backoffSchedRounds {
		runtime.Gosched()
		b.attempt++
		return
	}
	shift := b.attempt - backoffSchedRounds
	if shift > 7 {
		shift = 7
	}
	d := backoffSleepBase << uint(shift)
	if d > backoffSleepCap {
		d = backoffSleepCap
	}
	// jitter keeps every loser of a contended CAS from waking in lockstep
	d += time.Duration(rand.Int63n(int64(d/2 + 1)))
	time.Sleep(d)
	b.attempt++
}

// reset returns the backoff to its initial state, for reuse across
// unrelated retry loops on the same goroutine stack frame.
func (b *Backoff) reset() {
	b.attempt = 0
}
