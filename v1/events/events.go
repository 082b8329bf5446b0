package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// KeyDeadlock is the key the deadlock monitor publishes alerts on.
const KeyDeadlock = "deadlock"

// TransferKey returns the key transfer events for an account are published on.
func TransferKey(account string) string {
	return "transfer:" + account
}

// Event is a single notification delivered to subscribers.
type Event struct {
	Key string
}

// Bus provides the pub/sub mechanism used to propagate transfer and
// deadlock events.
type Bus interface {
	Publish(ctx context.Context, key string) error
	Subscribe(ctx context.Context, key string) (<-chan Event, error)
	Unsubscribe(ctx context.Context, key string, ch <-chan Event) error
}

// InMemoryBus is a local implementation of Bus mainly for single-process
// deployments and testing.
type InMemoryBus struct {
	mu        sync.Mutex
	subs      map[string][]chan Event
	published atomic.Uint64
	delivered atomic.Uint64
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[string][]chan Event)}
}

// Publish implements Bus.Publish. Delivery is best-effort: subscribers with a
// full buffer are skipped rather than blocking the publisher.
func (b *InMemoryBus) Publish(ctx context.Context, key string) error {
	b.mu.Lock()
	chans := append([]chan Event(nil), b.subs[key]...)
	b.mu.Unlock()
	b.published.Add(1)
	evt := Event{Key: key}
	for _, ch := range chans {
		select {
		case ch <- evt:
			b.delivered.Add(1)
		default:
		}
	}
	return nil
}

// Subscribe implements Bus.Subscribe. The subscription is removed when ctx
// is cancelled.
func (b *InMemoryBus) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.subs[key] = append(b.subs[key], ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), key, ch)
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *InMemoryBus) Unsubscribe(ctx context.Context, key string, ch <-chan Event) error {
	b.mu.Lock()
	subs := b.subs[key]
	for i, c := range subs {
		if c == ch {
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			b.subs[key] = subs
			close(c)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, key)
	}
	b.mu.Unlock()
	return nil
}

// Metrics reports publish and delivery counts.
type Metrics struct {
	Published uint64
	Delivered uint64
}

// Metrics returns current counters for the bus.
func (b *InMemoryBus) Metrics() Metrics {
	return Metrics{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
	}
}
