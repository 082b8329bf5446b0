package transfer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-tandem/v1/acquire"
	tandemerrors "github.com/mirkobrombin/go-tandem/v1/errors"
	"github.com/mirkobrombin/go-tandem/v1/events"
	"github.com/mirkobrombin/go-tandem/v1/ledger"
	"github.com/mirkobrombin/go-tandem/v1/metrics"
)

var tracer = otel.Tracer("github.com/mirkobrombin/go-tandem/v1/transfer")

// Strategy selects how the pair of guards is acquired.
type Strategy int

const (
	// StrategyOrdered prevents deadlock by acquisition order; the wait is
	// unbounded.
	StrategyOrdered Strategy = iota
	// StrategyBackoff bounds the wait by a deadline and may time out.
	StrategyBackoff
	// StrategyInterruptible waits until acquired or externally cancelled.
	StrategyInterruptible
)

// String returns a short label for logs and traces.
func (s Strategy) String() string {
	switch s {
	case StrategyOrdered:
		return "ordered"
	case StrategyBackoff:
		return "backoff"
	case StrategyInterruptible:
		return "interruptible"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of one transfer attempt. Exactly one of
// OK or Err is meaningful: OK means Applied moved from source to
// destination, otherwise Err carries the typed reason.
type Outcome struct {
	OK       bool
	Applied  int64
	Strategy Strategy
	Retries  int
	Elapsed  time.Duration
	Err      error
}

// Executor runs transfers between accounts. The zero strategies are
// replaced with defaults, so New(nil-free) options is enough for local use.
type Executor struct {
	ordered       *acquire.Ordered
	backoff       *acquire.Backoff
	interruptible *acquire.Interruptible

	bus   events.Bus
	store ledger.Store
	cache *OutcomeCache

	latencyHist  prometheus.Histogram
	traceEnabled bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithStrategies replaces the default acquisition strategies. Nil entries
// keep the default.
func WithStrategies(o *acquire.Ordered, b *acquire.Backoff, i *acquire.Interruptible) Option {
	return func(e *Executor) {
		if o != nil {
			e.ordered = o
		}
		if b != nil {
			e.backoff = b
		}
		if i != nil {
			e.interruptible = i
		}
	}
}

// WithEvents publishes a transfer event for both accounts after a commit.
func WithEvents(bus events.Bus) Option {
	return func(e *Executor) { e.bus = bus }
}

// WithStore persists both balances after a commit. Persistence is
// best-effort: a store failure does not undo a committed transfer.
func WithStore(store ledger.Store) Option {
	return func(e *Executor) { e.store = store }
}

// WithOutcomeCache enables ExecuteOnce deduplication.
func WithOutcomeCache(cache *OutcomeCache) Option {
	return func(e *Executor) { e.cache = cache }
}

// WithMetrics registers a transfer latency histogram on reg. Counters are
// shared process-wide via the metrics package.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Executor) {
		e.latencyHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tandem_transfer_latency_seconds",
			Help:    "Latency of transfer execution",
			Buckets: prometheus.DefBuckets,
		})
		reg.MustRegister(e.latencyHist)
	}
}

// WithTracing enables OpenTelemetry spans for Execute.
func WithTracing() Option {
	return func(e *Executor) { e.traceEnabled = true }
}

// defaultBackoff bounds are deliberately small: per-attempt waits should be
// far shorter than the overall deadline to leave room for retries.
const (
	defaultPerAttempt = 10 * time.Millisecond
	defaultOverall    = 200 * time.Millisecond
)

// New returns an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		ordered:       acquire.NewOrdered(),
		backoff:       acquire.NewBackoff(defaultPerAttempt, defaultOverall),
		interruptible: acquire.NewInterruptible(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute moves amount from one account to the other using the selected
// strategy.
//
// A non-positive amount and a self-transfer are rejected before any guard is
// taken. The balance check runs again under the guards: acquisition may have
// waited, and the balance seen before the wait proves nothing.
func (e *Executor) Execute(ctx context.Context, from, to *ledger.Account, amount int64, strategy Strategy) Outcome {
	start := time.Now()
	out := Outcome{Strategy: strategy}

	var span trace.Span
	if e.traceEnabled {
		ctx, span = tracer.Start(ctx, "Transfer.Execute",
			trace.WithAttributes(
				attribute.String("tandem.from", from.Name()),
				attribute.String("tandem.to", to.Name()),
				attribute.Int64("tandem.amount", amount),
				attribute.String("tandem.strategy", strategy.String()),
			))
		defer span.End()
	}

	switch {
	case amount <= 0:
		out.Err = tandemerrors.ErrInvalidAmount
	case from == to:
		out.Err = tandemerrors.ErrSelfTransfer
	default:
		e.run(ctx, from, to, amount, strategy, &out)
	}
	out.Elapsed = time.Since(start)

	e.report(ctx, from, to, out, span)
	return out
}

// run acquires the pair and applies the mutation. It fills OK, Applied,
// Retries and Err on out.
func (e *Executor) run(ctx context.Context, from, to *ledger.Account, amount int64, strategy Strategy, out *Outcome) {
	var guard *acquire.DualGuard

	switch strategy {
	case StrategyOrdered:
		guard = e.ordered.Acquire(from.Guard(), to.Guard())
	case StrategyBackoff:
		res := e.backoff.Acquire(from.Guard(), to.Guard())
		out.Retries = res.Retries
		if res.Outcome != acquire.Acquired {
			out.Err = tandemerrors.ErrTimeout
			return
		}
		guard = res.Guard
	case StrategyInterruptible:
		res := e.interruptible.Acquire(ctx, from.Guard(), to.Guard())
		if res.Outcome != acquire.Acquired {
			out.Err = tandemerrors.ErrCancelled
			return
		}
		guard = res.Guard
	default:
		out.Err = tandemerrors.ErrUnknownStrategy
		return
	}

	// Release is unconditional, fault paths included.
	defer guard.Release()

	if from.BalanceLocked() < amount {
		out.Err = tandemerrors.ErrInsufficientFunds
		return
	}
	from.AddLocked(-amount)
	to.AddLocked(amount)
	out.OK = true
	out.Applied = amount
}

// report updates metrics, publishes events and persists balances after the
// guards are released.
func (e *Executor) report(ctx context.Context, from, to *ledger.Account, out Outcome, span trace.Span) {
	if out.Retries > 0 {
		metrics.RetryCounter.Add(float64(out.Retries))
	}
	if e.latencyHist != nil {
		e.latencyHist.Observe(out.Elapsed.Seconds())
	}

	if out.OK {
		metrics.TransferCounter.Inc()
		if e.bus != nil {
			_ = e.bus.Publish(ctx, events.TransferKey(from.Name()))
			_ = e.bus.Publish(ctx, events.TransferKey(to.Name()))
		}
		if e.store != nil {
			// Best-effort bookkeeping; the transfer is already committed.
			_ = e.store.Set(ctx, from.Name(), from.Balance())
			_ = e.store.Set(ctx, to.Name(), to.Balance())
		}
	} else {
		metrics.TransferFailedCounter.Inc()
		if out.Err == tandemerrors.ErrCancelled {
			metrics.CancellationCounter.Inc()
		}
	}

	if e.traceEnabled {
		span.SetAttributes(
			attribute.Bool("tandem.ok", out.OK),
			attribute.Int("tandem.retries", out.Retries),
			attribute.Int64("tandem.latency_ms", out.Elapsed.Milliseconds()),
		)
		if out.Err != nil {
			span.SetAttributes(attribute.String("tandem.error", out.Err.Error()))
		}
	}
}

// ExecuteOnce runs the transfer at most once for the given id. A repeated
// call with an id whose transfer already committed returns the cached
// outcome without touching balances. Failed outcomes are not cached, so a
// timed-out or cancelled transfer may be retried under the same id.
//
// Without an outcome cache this is identical to Execute.
func (e *Executor) ExecuteOnce(ctx context.Context, id string, from, to *ledger.Account, amount int64, strategy Strategy) Outcome {
	if e.cache == nil {
		return e.Execute(ctx, from, to, amount, strategy)
	}
	if out, ok := e.cache.Get(id); ok {
		return out
	}
	out := e.Execute(ctx, from, to, amount, strategy)
	if out.OK {
		e.cache.Set(id, out)
	}
	return out
}
