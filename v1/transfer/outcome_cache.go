package transfer

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

const defaultOutcomeTTL = 10 * time.Minute

// OutcomeCache remembers committed outcomes by transfer id so that a retried
// submission does not apply the same transfer twice. Entries expire after a
// TTL; deduplication across longer horizons belongs to the caller's store.
type OutcomeCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// CacheOption configures an OutcomeCache.
type CacheOption func(*OutcomeCache)

// WithTTL sets how long a committed outcome is remembered.
func WithTTL(ttl time.Duration) CacheOption {
	return func(oc *OutcomeCache) {
		if ttl > 0 {
			oc.ttl = ttl
		}
	}
}

// NewOutcomeCache returns a ristretto-backed outcome cache.
func NewOutcomeCache(opts ...CacheOption) *OutcomeCache {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,     // number of keys to track frequency of (10k).
		MaxCost:     1 << 20, // maximum cost of cache (1MB by default).
		BufferItems: 64,      // number of keys per Get buffer.
	})
	if err != nil {
		panic(err)
	}
	oc := &OutcomeCache{c: c, ttl: defaultOutcomeTTL}
	for _, opt := range opts {
		opt(oc)
	}
	return oc
}

// Get returns the cached outcome for id, if any.
func (oc *OutcomeCache) Get(id string) (Outcome, bool) {
	v, ok := oc.c.Get(id)
	if !ok {
		return Outcome{}, false
	}
	out, ok := v.(Outcome)
	return out, ok
}

// Set records the outcome for id.
func (oc *OutcomeCache) Set(id string, out Outcome) {
	oc.c.SetWithTTL(id, out, 1, oc.ttl)
	oc.c.Wait()
}

// Close releases resources held by the cache.
func (oc *OutcomeCache) Close() {
	oc.c.Close()
}
