package detect

import (
	"context"
	"sync"
	"time"

	"github.com/mirkobrombin/go-tandem/v1/events"
	"github.com/mirkobrombin/go-tandem/v1/metrics"
)

// Monitor runs cycle detection on a fixed schedule. For every cycle found it
// updates the deadlock gauge, publishes an alert on the bus (when one is
// configured) and, when resolution is enabled, cancels one cancellable
// participant to break the cycle.
type Monitor struct {
	det      *Detector
	reg      *Registry
	interval time.Duration
	bus      events.Bus
	resolve  bool

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithBus publishes a deadlock event for every detection pass that finds at
// least one cycle.
func WithBus(bus events.Bus) MonitorOption {
	return func(m *Monitor) { m.bus = bus }
}

// WithResolution makes the monitor cancel one cancellable participant per
// cycle. Participants that never registered a cancel function (ordered and
// backoff attempts) cannot be chosen.
func WithResolution() MonitorOption {
	return func(m *Monitor) { m.resolve = true }
}

// NewMonitor returns a stopped Monitor checking reg every interval.
func NewMonitor(reg *Registry, interval time.Duration, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		det:      NewDetector(reg),
		reg:      reg,
		interval: interval,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the detection loop. It returns immediately.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RunOnce(context.Background())
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop terminates the detection loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// RunOnce performs a single detection pass and returns the cycles found.
func (m *Monitor) RunOnce(ctx context.Context) []Cycle {
	cycles := m.det.DetectCycles()
	metrics.DeadlockGauge.Set(float64(len(cycles)))
	if len(cycles) == 0 {
		return nil
	}
	if m.bus != nil {
		_ = m.bus.Publish(ctx, events.KeyDeadlock)
	}
	if m.resolve {
		for _, c := range cycles {
			if m.breakCycle(c) {
				metrics.DeadlockResolvedCounter.Inc()
			}
		}
	}
	return cycles
}

// breakCycle cancels the first participant with a registered cancel
// function. It reports whether any cancellation was issued.
func (m *Monitor) breakCycle(c Cycle) bool {
	for _, owner := range c.Owners {
		if m.reg.Cancel(owner) {
			return true
		}
	}
	return false
}
