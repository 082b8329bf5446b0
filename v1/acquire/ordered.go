package acquire

import (
	"github.com/google/uuid"
	"github.com/mirkobrombin/go-tandem/v1/lock"
)

// Ordered acquires a pair of guards in the order of their IDs, lower first.
// Because every caller derives the same order from the same IDs, no two
// attempts can ever wait on each other in a cycle. The trade-off is an
// unbounded wait: Acquire blocks until both guards are held and cannot fail.
type Ordered struct {
	tieBreak *lock.Mutex
	track    track
}

// NewOrdered returns an Ordered strategy. Pass WithTieBreaker to share the
// tie-break mutex when several instances acquire the same resources.
func NewOrdered(opts ...Option) *Ordered {
	cfg := newConfig(opts)
	tb := cfg.tieBreak
	if tb == nil {
		tb = lock.New("acquire.tiebreak")
	}
	return &Ordered{tieBreak: tb, track: track{reg: cfg.reg}}
}

// Acquire blocks until both guards are held and returns the combined guard.
//
// If the two IDs compare equal the attempt serializes through the tie-break
// mutex before taking the pair in argument order, so a total order holds
// even on ties. Mutex IDs are process-unique, which makes an ID tie mean a
// and b are the same mutex; that guard is then taken once.
func (o *Ordered) Acquire(a, b *lock.Mutex) *DualGuard {
	owner := uuid.NewString()

	if a.ID() == b.ID() {
		o.track.lockBlocking(owner, o.tieBreak)
		o.track.lockBlocking(owner, a)
		locks := []*lock.Mutex{a}
		if b != a {
			o.track.lockBlocking(owner, b)
			locks = append(locks, b)
		}
		// The pair is held; the tie-break gate is only needed during
		// acquisition.
		o.tieBreak.Unlock()
		o.track.released(owner, o.tieBreak)
		return o.track.guard(owner, locks...)
	}

	first, second := a, b
	if second.ID() < first.ID() {
		first, second = second, first
	}
	o.track.lockBlocking(owner, first)
	o.track.lockBlocking(owner, second)
	return o.track.guard(owner, first, second)
}
