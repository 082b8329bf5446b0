package acquire

import (
	"context"

	"github.com/google/uuid"
	"github.com/mirkobrombin/go-tandem/v1/lock"
)

// Interruptible acquires a pair of guards in a context-cancellable wait
// mode. Cancelling the context aborts the attempt at any point and always
// leaves zero guards held, which is what lets a monitor resolve a deadlock
// that has already formed rather than merely prevent one.
type Interruptible struct {
	track track
}

// NewInterruptible returns an Interruptible strategy.
func NewInterruptible(opts ...Option) *Interruptible {
	cfg := newConfig(opts)
	return &Interruptible{track: track{reg: cfg.reg}}
}

// Acquire blocks until both guards are held or ctx is cancelled. When a
// registry is attached the attempt also registers a cancel function there,
// so the deadlock monitor can abort it without access to the caller's ctx.
func (s *Interruptible) Acquire(ctx context.Context, a, b *lock.Mutex) Result {
	owner := uuid.NewString()
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.track.registerCancel(owner, cancel)

	s.track.await(owner, a)
	if err := a.Acquire(cctx); err != nil {
		s.track.done(owner)
		return Result{Outcome: Cancelled}
	}
	s.track.acquired(owner, a)

	s.track.await(owner, b)
	if err := b.Acquire(cctx); err != nil {
		a.Unlock()
		s.track.done(owner)
		return Result{Outcome: Cancelled}
	}
	s.track.acquired(owner, b)

	return Result{Guard: s.track.guard(owner, a, b), Outcome: Acquired}
}
