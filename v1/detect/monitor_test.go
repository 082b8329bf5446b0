package detect_test

import (
	"context"
	"testing"
	"time"

	"github.com/mirkobrombin/go-tandem/v1/acquire"
	"github.com/mirkobrombin/go-tandem/v1/detect"
	"github.com/mirkobrombin/go-tandem/v1/events"
	"github.com/mirkobrombin/go-tandem/v1/lock"
)

// An induced two-party deadlock: a fake participant holds b and waits for a,
// while a live interruptible attempt holds a and waits for b. The monitor
// must report the cycle within its polling window and, with resolution on,
// cancel the interruptible attempt to break it.
func TestMonitorDetectsAndResolvesInducedDeadlock(t *testing.T) {
	reg := detect.NewRegistry()
	a := lock.New("a")
	b := lock.New("b")

	// Fake participant: holds b, waits for a. It stands in for an attempt
	// that cannot be cancelled.
	b.Lock()
	reg.Acquired("blocker", b.ID())
	reg.Await("blocker", a.ID())

	s := acquire.NewInterruptible(acquire.WithRegistry(reg))
	resCh := make(chan acquire.Result, 1)
	go func() { resCh <- s.Acquire(context.Background(), a, b) }()

	bus := events.NewInMemoryBus()
	alerts, err := bus.Subscribe(context.Background(), events.KeyDeadlock)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	m := detect.NewMonitor(reg, 10*time.Millisecond,
		detect.WithBus(bus),
		detect.WithResolution(),
	)
	m.Start()
	defer m.Stop()

	select {
	case evt := <-alerts:
		if evt.Key != events.KeyDeadlock {
			t.Fatalf("unexpected alert key %q", evt.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("no deadlock alert within the polling window")
	}

	select {
	case res := <-resCh:
		if res.Outcome != acquire.Cancelled {
			t.Fatalf("expected the interruptible attempt to be cancelled, got %v", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not break the cycle")
	}

	// The cancelled attempt must hold nothing.
	if !a.TryLock() {
		t.Fatal("guard leaked by the cancelled attempt")
	}
	a.Unlock()
	b.Unlock()
}

func TestMonitorRunOnceReportsCycleParticipants(t *testing.T) {
	reg := detect.NewRegistry()
	reg.Acquired("o1", 1)
	reg.Acquired("o2", 2)
	reg.Await("o1", 2)
	reg.Await("o2", 1)

	m := detect.NewMonitor(reg, time.Hour)
	cycles := m.RunOnce(context.Background())
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	c := cycles[0]
	if !c.Contains("o1") || !c.Contains("o2") {
		t.Fatalf("unexpected participants %v", c.Owners)
	}
}

func TestMonitorStopTerminatesLoop(t *testing.T) {
	m := detect.NewMonitor(detect.NewRegistry(), time.Millisecond)
	m.Start()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
