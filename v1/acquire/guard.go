package acquire

import (
	"sync"

	"github.com/mirkobrombin/go-tandem/v1/lock"
)

// Outcome is the terminal state of an acquisition attempt.
type Outcome int

const (
	// Acquired means both guards are held.
	Acquired Outcome = iota
	// TimedOut means the backoff strategy exhausted its deadline. Nothing
	// is held.
	TimedOut
	// Cancelled means the interruptible strategy was aborted externally.
	// Nothing is held.
	Cancelled
)

// String returns a short label for logs and traces.
func (o Outcome) String() string {
	switch o {
	case Acquired:
		return "acquired"
	case TimedOut:
		return "timed-out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of an acquisition attempt. Guard is non-nil
// only when Outcome is Acquired.
type Result struct {
	Guard   *DualGuard
	Outcome Outcome
	Retries int
}

// DualGuard is the combined guard over an acquired pair. Release is
// idempotent and unlocks in reverse acquisition order.
type DualGuard struct {
	locks     []*lock.Mutex
	onRelease func()
	once      sync.Once
}

func newGuard(onRelease func(), locks ...*lock.Mutex) *DualGuard {
	return &DualGuard{locks: locks, onRelease: onRelease}
}

// Release unlocks every guard held by this pair. Calling it more than once
// is a no-op.
func (g *DualGuard) Release() {
	g.once.Do(func() {
		for i := len(g.locks) - 1; i >= 0; i-- {
			g.locks[i].Unlock()
		}
		if g.onRelease != nil {
			g.onRelease()
		}
	})
}
