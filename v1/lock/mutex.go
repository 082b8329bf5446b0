package lock

import (
	"context"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// Mutex is an exclusive, non-reentrant guard built on a buffered channel.
// Unlike sync.Mutex it supports bounded and context-cancellable acquisition,
// which the backoff and interruptible strategies require.
//
// Every Mutex has a process-unique ID assigned at construction. IDs are
// strictly increasing and never reused, so comparing two IDs yields the same
// result for every caller over the process lifetime.
type Mutex struct {
	id   uint64
	name string
	ch   chan struct{}
}

// New returns a new unlocked Mutex. The name is only used for diagnostics.
func New(name string) *Mutex {
	return &Mutex{
		id:   idSeq.Add(1),
		name: name,
		ch:   make(chan struct{}, 1),
	}
}

// ID returns the mutex identity used for ordering decisions.
func (m *Mutex) ID() uint64 { return m.id }

// Name returns the diagnostic name given at construction.
func (m *Mutex) Name() string { return m.name }

// Lock blocks until the mutex is held. The wait is unbounded.
func (m *Mutex) Lock() {
	m.ch <- struct{}{}
}

// TryLock attempts to take the mutex without waiting.
func (m *Mutex) TryLock() bool {
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// TryLockTimeout attempts to take the mutex, waiting at most d.
// A non-positive d degrades to TryLock.
func (m *Mutex) TryLockTimeout(d time.Duration) bool {
	if d <= 0 {
		return m.TryLock()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case m.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Acquire blocks until the mutex is held or ctx is cancelled. On cancellation
// it returns ctx.Err() and the caller holds nothing.
func (m *Mutex) Acquire(ctx context.Context) error {
	// A select with two ready cases picks one at random; a cancelled ctx
	// must never win that coin toss against a free mutex.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics, as that is
// always a caller bug.
func (m *Mutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("lock: unlock of unlocked mutex " + m.name)
	}
}
