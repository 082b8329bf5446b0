package events

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

type natsSubscription struct {
	sub   *nats.Subscription
	chans []chan Event
}

// maxProcessedIDs bounds the redelivery dedupe window. Older message ids are
// forgotten in arrival order.
const maxProcessedIDs = 8192

// NATSBus implements Bus using a NATS backend. Events carry a unique message
// id so redeliveries after a reconnect are suppressed.
type NATSBus struct {
	conn      *nats.Conn
	mu        sync.Mutex
	subs      map[string]*natsSubscription
	processed map[string]struct{}
	recent    []string
	published atomic.Uint64
	delivered atomic.Uint64
}

// NewNATSBus returns a new NATSBus using the provided connection.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{
		conn:      conn,
		subs:      make(map[string]*natsSubscription),
		processed: make(map[string]struct{}),
	}
}

// Publish implements Bus.Publish. On connection failure it reconnects and
// retries with exponential backoff until ctx is cancelled.
func (b *NATSBus) Publish(ctx context.Context, key string) error {
	id := uuid.NewString()
	backoff := 100 * time.Millisecond
	for {
		err := b.conn.Publish(key, []byte(id))
		if err == nil {
			b.published.Add(1)
			return nil
		}
		_ = b.reconnect()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		time.Sleep(backoff + jitter)
		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}

// Subscribe implements Bus.Subscribe.
func (b *NATSBus) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	ch := make(chan Event, 1)
	backoff := 100 * time.Millisecond

	for {
		// Check and insert under one lock hold: two concurrent first
		// subscribers must not each create a NATS subscription for the key.
		b.mu.Lock()
		if sub := b.subs[key]; sub != nil {
			sub.chans = append(sub.chans, ch)
			b.mu.Unlock()
			break
		}
		ns, err := b.conn.Subscribe(key, b.natsHandler(key))
		if err == nil {
			b.subs[key] = &natsSubscription{sub: ns, chans: []chan Event{ch}}
			b.mu.Unlock()
			break
		}
		b.mu.Unlock()
		_ = b.reconnect()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		time.Sleep(backoff + jitter)
		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}

	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(context.Background(), key, ch)
	}()
	return ch, nil
}

// Unsubscribe implements Bus.Unsubscribe.
func (b *NATSBus) Unsubscribe(ctx context.Context, key string, ch <-chan Event) error {
	b.mu.Lock()
	sub := b.subs[key]
	if sub == nil {
		b.mu.Unlock()
		return nil
	}
	for i, c := range sub.chans {
		if c == ch {
			sub.chans[i] = sub.chans[len(sub.chans)-1]
			sub.chans = sub.chans[:len(sub.chans)-1]
			close(c)
			break
		}
	}
	if len(sub.chans) == 0 {
		delete(b.subs, key)
		b.mu.Unlock()
		return sub.sub.Unsubscribe()
	}
	b.mu.Unlock()
	return nil
}

// Metrics returns the published and delivered counts.
func (b *NATSBus) Metrics() Metrics {
	return Metrics{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
	}
}

func (b *NATSBus) natsHandler(key string) nats.MsgHandler {
	return func(m *nats.Msg) {
		id := string(m.Data)
		b.mu.Lock()
		if _, ok := b.processed[id]; ok {
			b.mu.Unlock()
			return
		}
		b.processed[id] = struct{}{}
		b.recent = append(b.recent, id)
		if len(b.recent) > maxProcessedIDs {
			delete(b.processed, b.recent[0])
			b.recent = b.recent[1:]
		}
		sub := b.subs[key]
		if sub == nil {
			b.mu.Unlock()
			return
		}
		chans := append([]chan Event(nil), sub.chans...)
		b.mu.Unlock()

		evt := Event{Key: key}
		for _, c := range chans {
			select {
			case c <- evt:
				b.delivered.Add(1)
			default:
			}
		}
	}
}

func (b *NATSBus) reconnect() error {
	if b.conn != nil && b.conn.IsConnected() {
		return nil
	}
	newConn, err := b.conn.Opts.Connect()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.conn = newConn
	for key, sub := range b.subs {
		ns, err := b.conn.Subscribe(key, b.natsHandler(key))
		if err != nil {
			continue
		}
		sub.sub = ns
	}
	b.mu.Unlock()
	return nil
}
