package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	tandemerrors "github.com/mirkobrombin/go-tandem/v1/errors"
	"github.com/mirkobrombin/go-tandem/v1/events"
	"github.com/mirkobrombin/go-tandem/v1/ledger"
)

func TestExecuteRejectsInvalidRequests(t *testing.T) {
	e := New()
	ctx := context.Background()
	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 100)

	if out := e.Execute(ctx, a, b, 0, StrategyOrdered); out.Err != tandemerrors.ErrInvalidAmount {
		t.Fatalf("zero amount: %v", out.Err)
	}
	if out := e.Execute(ctx, a, b, -5, StrategyOrdered); out.Err != tandemerrors.ErrInvalidAmount {
		t.Fatalf("negative amount: %v", out.Err)
	}
	if out := e.Execute(ctx, a, a, 10, StrategyOrdered); out.Err != tandemerrors.ErrSelfTransfer {
		t.Fatalf("self transfer: %v", out.Err)
	}
	if out := e.Execute(ctx, a, b, 10, Strategy(99)); out.Err != tandemerrors.ErrUnknownStrategy {
		t.Fatalf("unknown strategy: %v", out.Err)
	}
	if a.Balance() != 100 || b.Balance() != 100 {
		t.Fatalf("balances moved: a=%d b=%d", a.Balance(), b.Balance())
	}
}

func TestExecuteAppliesTransfer(t *testing.T) {
	e := New()
	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 50)

	out := e.Execute(context.Background(), a, b, 30, StrategyOrdered)
	if !out.OK || out.Err != nil || out.Applied != 30 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if a.Balance() != 70 || b.Balance() != 80 {
		t.Fatalf("balances a=%d b=%d", a.Balance(), b.Balance())
	}
}

func TestExecuteInsufficientFundsIsNoOp(t *testing.T) {
	e := New()
	a := ledger.NewAccount("a", 10)
	b := ledger.NewAccount("b", 0)

	out := e.Execute(context.Background(), a, b, 11, StrategyOrdered)
	if out.OK || out.Err != tandemerrors.ErrInsufficientFunds {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if a.Balance() != 10 || b.Balance() != 0 {
		t.Fatalf("balances moved: a=%d b=%d", a.Balance(), b.Balance())
	}
	// Guards must have been released on the failure path.
	if !a.Guard().TryLock() || !b.Guard().TryLock() {
		t.Fatal("a guard leaked")
	}
	a.Guard().Unlock()
	b.Guard().Unlock()
}

func TestExecuteCancelledContext(t *testing.T) {
	e := New()
	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := e.Execute(ctx, a, b, 10, StrategyInterruptible)
	if out.OK || out.Err != tandemerrors.ErrCancelled {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if a.Balance() != 100 || b.Balance() != 100 {
		t.Fatalf("balances moved: a=%d b=%d", a.Balance(), b.Balance())
	}
}

func TestExecuteBackoffTimesOutUnderHold(t *testing.T) {
	e := New()
	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 100)

	b.Guard().Lock()
	defer b.Guard().Unlock()

	out := e.Execute(context.Background(), a, b, 10, StrategyBackoff)
	if out.OK || out.Err != tandemerrors.ErrTimeout {
		t.Fatalf("unexpected outcome %+v", out)
	}
	// The first guard must not stay held after the timeout.
	if !a.Guard().TryLock() {
		t.Fatal("first guard leaked")
	}
	a.Guard().Unlock()
}

// Opposite-direction transfer storms must terminate and conserve the total.
func TestExecuteConservesTotalUnderContention(t *testing.T) {
	const (
		start     = int64(1_000_000)
		transfers = 1000
	)

	for _, strategy := range []Strategy{StrategyOrdered, StrategyBackoff, StrategyInterruptible} {
		t.Run(strategy.String(), func(t *testing.T) {
			e := New()
			a := ledger.NewAccount("a", start)
			b := ledger.NewAccount("b", start)
			ctx := context.Background()

			var okAB, okBA int64
			var mu sync.Mutex
			done := make(chan struct{})
			go func() {
				defer close(done)
				var wg sync.WaitGroup
				wg.Add(2)
				go func() {
					defer wg.Done()
					for i := 0; i < transfers; i++ {
						if out := e.Execute(ctx, a, b, 1, strategy); out.OK {
							mu.Lock()
							okAB++
							mu.Unlock()
						}
					}
				}()
				go func() {
					defer wg.Done()
					for i := 0; i < transfers; i++ {
						if out := e.Execute(ctx, b, a, 1, strategy); out.OK {
							mu.Lock()
							okBA++
							mu.Unlock()
						}
					}
				}()
				wg.Wait()
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("transfer storm did not terminate")
			}

			if total := a.Balance() + b.Balance(); total != 2*start {
				t.Fatalf("total = %d, want %d", total, 2*start)
			}
			if got := a.Balance(); got != start-okAB+okBA {
				t.Fatalf("a = %d, want %d (okAB=%d okBA=%d)", got, start-okAB+okBA, okAB, okBA)
			}
			// Balances are large enough that no attempt can run dry, so
			// only the bounded strategy is allowed to fail.
			if strategy != StrategyBackoff && (okAB != transfers || okBA != transfers) {
				t.Fatalf("lost transfers: okAB=%d okBA=%d", okAB, okBA)
			}
		})
	}
}

func TestExecutePublishesEvents(t *testing.T) {
	bus := events.NewInMemoryBus()
	e := New(WithEvents(bus))
	ctx := context.Background()

	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 100)
	chA, err := bus.Subscribe(ctx, events.TransferKey("a"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	chB, err := bus.Subscribe(ctx, events.TransferKey("b"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if out := e.Execute(ctx, a, b, 10, StrategyOrdered); !out.OK {
		t.Fatalf("transfer failed: %+v", out)
	}
	for name, ch := range map[string]<-chan events.Event{"a": chA, "b": chB} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("no event for %s", name)
		}
	}
}

type memStore struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemStore() *memStore { return &memStore{balances: make(map[string]int64)} }

func (s *memStore) Get(_ context.Context, account string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[account]
	return balance, ok, nil
}

func (s *memStore) Set(_ context.Context, account string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = balance
	return nil
}

func (s *memStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.balances))
	for k := range s.balances {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestExecutePersistsAfterCommit(t *testing.T) {
	store := newMemStore()
	e := New(WithStore(store))
	ctx := context.Background()

	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 0)
	if out := e.Execute(ctx, a, b, 40, StrategyOrdered); !out.OK {
		t.Fatalf("transfer failed: %+v", out)
	}
	if got, ok, _ := store.Get(ctx, "a"); !ok || got != 60 {
		t.Fatalf("stored a = %d ok=%v", got, ok)
	}
	if got, ok, _ := store.Get(ctx, "b"); !ok || got != 40 {
		t.Fatalf("stored b = %d ok=%v", got, ok)
	}
}

func TestExecuteOnceDeduplicates(t *testing.T) {
	cache := NewOutcomeCache()
	defer cache.Close()
	e := New(WithOutcomeCache(cache))
	ctx := context.Background()

	a := ledger.NewAccount("a", 100)
	b := ledger.NewAccount("b", 0)

	first := e.ExecuteOnce(ctx, "tx-1", a, b, 25, StrategyOrdered)
	if !first.OK {
		t.Fatalf("first attempt failed: %+v", first)
	}
	second := e.ExecuteOnce(ctx, "tx-1", a, b, 25, StrategyOrdered)
	if !second.OK {
		t.Fatalf("replay reported failure: %+v", second)
	}
	if a.Balance() != 75 || b.Balance() != 25 {
		t.Fatalf("transfer applied twice: a=%d b=%d", a.Balance(), b.Balance())
	}
}

func TestExecuteOnceDoesNotCacheFailures(t *testing.T) {
	cache := NewOutcomeCache()
	defer cache.Close()
	e := New(WithOutcomeCache(cache))
	ctx := context.Background()

	a := ledger.NewAccount("a", 10)
	b := ledger.NewAccount("b", 0)

	if out := e.ExecuteOnce(ctx, "tx-2", a, b, 50, StrategyOrdered); out.Err != tandemerrors.ErrInsufficientFunds {
		t.Fatalf("unexpected outcome %+v", out)
	}
	a.Guard().Lock()
	a.AddLocked(90)
	a.Guard().Unlock()

	if out := e.ExecuteOnce(ctx, "tx-2", a, b, 50, StrategyOrdered); !out.OK {
		t.Fatalf("retry failed: %+v", out)
	}
	if a.Balance() != 50 || b.Balance() != 50 {
		t.Fatalf("balances a=%d b=%d", a.Balance(), b.Balance())
	}
}
