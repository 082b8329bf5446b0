package acquire

import (
	"time"

	"github.com/google/uuid"
	"github.com/mirkobrombin/go-tandem/v1/lock"
)

// Backoff acquires a pair of guards with bounded waits. Each attempt
// try-locks the first guard within the per-attempt timeout, then the second;
// if the second cannot be taken the first is released immediately, breaking
// hold-and-wait. Failed attempts pause for a jittered, exponentially growing
// delay before retrying, until the overall deadline expires.
//
// Acquire always returns within the overall deadline plus a small epsilon.
// It does not guarantee eventual success under sustained contention: the
// jitter mitigates livelock, it does not eliminate it.
type Backoff struct {
	perAttempt time.Duration
	overall    time.Duration
	baseDelay  time.Duration
	maxDelay   time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
	jitter     func(n int64) int64
	track      track
}

// NewBackoff returns a Backoff strategy with the given per-attempt timeout
// and overall deadline.
func NewBackoff(perAttempt, overall time.Duration, opts ...Option) *Backoff {
	cfg := newConfig(opts)
	return &Backoff{
		perAttempt: perAttempt,
		overall:    overall,
		baseDelay:  cfg.baseDelay,
		maxDelay:   cfg.maxDelay,
		now:        cfg.now,
		sleep:      cfg.sleep,
		jitter:     cfg.jitter,
		track:      track{reg: cfg.reg},
	}
}

// Acquire attempts to take both guards before the overall deadline. On
// TimedOut nothing is held.
func (s *Backoff) Acquire(a, b *lock.Mutex) Result {
	owner := uuid.NewString()
	deadline := s.now().Add(s.overall)
	delay := s.baseDelay
	retries := 0

	for {
		if g := s.tryPair(owner, a, b, deadline); g != nil {
			return Result{Guard: g, Outcome: Acquired, Retries: retries}
		}
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			s.track.done(owner)
			return Result{Outcome: TimedOut, Retries: retries}
		}

		pause := delay
		if delay > 0 {
			if j := s.jitter(int64(delay)); j > 0 {
				pause += time.Duration(j)
			}
		}
		if pause > remaining {
			pause = remaining
		}
		s.sleep(pause)
		retries++

		if delay < s.maxDelay {
			delay *= 2
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
		}
	}
}

// tryPair makes one bounded attempt at the pair. Any partial hold is
// released before returning nil.
func (s *Backoff) tryPair(owner string, a, b *lock.Mutex, deadline time.Time) *DualGuard {
	budget := func() time.Duration {
		remaining := deadline.Sub(s.now())
		if remaining > s.perAttempt {
			return s.perAttempt
		}
		return remaining
	}

	ba := budget()
	if ba < 0 {
		return nil
	}
	s.track.await(owner, a)
	if !a.TryLockTimeout(ba) {
		s.track.clearAwait(owner)
		return nil
	}
	s.track.acquired(owner, a)

	bb := budget()
	s.track.await(owner, b)
	if bb < 0 || !b.TryLockTimeout(bb) {
		s.track.clearAwait(owner)
		a.Unlock()
		s.track.released(owner, a)
		return nil
	}
	s.track.acquired(owner, b)
	return s.track.guard(owner, a, b)
}
