package taskpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2)
	ctx := context.Background()

	var running, peak atomic.Int64
	handles := make([]*Handle, 0, 8)
	for i := 0; i < 8; i++ {
		h, err := p.Submit(ctx, func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		if err := h.Await(ctx); err != nil {
			t.Fatalf("await: %v", err)
		}
	}
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency %d, want <= 2", got)
	}
}

func TestPoolAwaitReturnsTaskError(t *testing.T) {
	p := New(1)
	ctx := context.Background()
	boom := errors.New("boom")

	h, err := p.Submit(ctx, func(context.Context) error { return boom })
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := h.Await(ctx); got != boom {
		t.Fatalf("await = %v, want %v", got, boom)
	}
	if h.ID() == "" {
		t.Fatal("empty task id")
	}
}

func TestPoolCancelStopsTask(t *testing.T) {
	p := New(1)
	ctx := context.Background()

	h, err := p.Submit(ctx, func(tctx context.Context) error {
		<-tctx.Done()
		return tctx.Err()
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.Cancel()
	if got := h.Await(ctx); got != context.Canceled {
		t.Fatalf("await = %v, want context.Canceled", got)
	}
}

func TestPoolSubmitHonoursContext(t *testing.T) {
	p := New(1)
	ctx := context.Background()

	block := make(chan struct{})
	h, err := p.Submit(ctx, func(context.Context) error {
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := p.Submit(sctx, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected submission to fail on a full pool")
	}

	close(block)
	if err := h.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}
}
