package acquire

import (
	"context"
	"math/rand"
	"time"

	"github.com/mirkobrombin/go-tandem/v1/detect"
	"github.com/mirkobrombin/go-tandem/v1/lock"
)

type config struct {
	reg       *detect.Registry
	tieBreak  *lock.Mutex
	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time
	sleep     func(time.Duration)
	jitter    func(n int64) int64
}

func newConfig(opts []Option) config {
	cfg := config{
		baseDelay: time.Millisecond,
		maxDelay:  10 * time.Millisecond,
		now:       time.Now,
		sleep:     time.Sleep,
		jitter:    rand.Int63n,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures an acquisition strategy. Options not applicable to a
// strategy are ignored by its constructor.
type Option func(*config)

// WithRegistry makes the strategy report waits and holds to reg, feeding the
// wait-for graph detector.
func WithRegistry(reg *detect.Registry) Option {
	return func(c *config) { c.reg = reg }
}

// WithTieBreaker shares an explicit tie-break mutex across Ordered
// instances. Without it each instance creates its own, which is only safe
// when that instance is the sole acquirer of its resources.
func WithTieBreaker(m *lock.Mutex) Option {
	return func(c *config) { c.tieBreak = m }
}

// WithBackoffDelay overrides the backoff delay range. The delay starts at
// base and doubles after each failed attempt up to max, with uniform jitter
// added on top. Non-positive or inverted ranges are ignored and the defaults
// kept.
func WithBackoffDelay(base, max time.Duration) Option {
	return func(c *config) {
		if base <= 0 || max < base {
			return
		}
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithClock injects the time source and sleep function used by the backoff
// strategy, making deadline behavior deterministic in tests.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *config) {
		c.now = now
		c.sleep = sleep
	}
}

// WithJitter injects the randomness source used for backoff jitter. fn must
// return a uniform value in [0, n).
func WithJitter(fn func(n int64) int64) Option {
	return func(c *config) { c.jitter = fn }
}

// track wraps the optional registry so strategy code reads linearly. Every
// method is a no-op when no registry is attached.
type track struct {
	reg *detect.Registry
}

func (t track) await(owner string, m *lock.Mutex) {
	if t.reg != nil {
		t.reg.Await(owner, m.ID())
	}
}

func (t track) clearAwait(owner string) {
	if t.reg != nil {
		t.reg.ClearAwait(owner)
	}
}

func (t track) acquired(owner string, m *lock.Mutex) {
	if t.reg != nil {
		t.reg.Acquired(owner, m.ID())
	}
}

func (t track) released(owner string, m *lock.Mutex) {
	if t.reg != nil {
		t.reg.Released(owner, m.ID())
	}
}

func (t track) done(owner string) {
	if t.reg != nil {
		t.reg.Done(owner)
	}
}

func (t track) registerCancel(owner string, cancel context.CancelFunc) {
	if t.reg != nil {
		t.reg.RegisterCancel(owner, cancel)
	}
}

// guard returns a DualGuard whose release also retires the owner from the
// registry.
func (t track) guard(owner string, locks ...*lock.Mutex) *DualGuard {
	if t.reg == nil {
		return newGuard(nil, locks...)
	}
	reg := t.reg
	return newGuard(func() { reg.Done(owner) }, locks...)
}

// lockBlocking takes m with an unbounded wait, reporting the transition.
func (t track) lockBlocking(owner string, m *lock.Mutex) {
	t.await(owner, m)
	m.Lock()
	t.acquired(owner, m)
}
