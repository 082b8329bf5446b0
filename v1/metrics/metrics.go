package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// TransferCounter tracks the number of committed transfers.
	TransferCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tandem_transfers_total",
		Help: "Total number of committed transfers",
	})
	// TransferFailedCounter tracks transfers that ended without applying.
	TransferFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tandem_transfers_failed_total",
		Help: "Total number of failed transfers",
	})
	// RetryCounter tracks backoff acquisition retries.
	RetryCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tandem_acquire_retries_total",
		Help: "Total number of backoff acquisition retries",
	})
	// CancellationCounter tracks interruptible acquisitions aborted by cancellation.
	CancellationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tandem_acquire_cancellations_total",
		Help: "Total number of cancelled acquisitions",
	})
	// DeadlockGauge reports the number of wait-for cycles seen by the last
	// detector pass.
	DeadlockGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tandem_deadlocks",
		Help: "Wait-for cycles found by the most recent detection pass",
	})
	// DeadlockResolvedCounter tracks cycles broken by cancellation.
	DeadlockResolvedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tandem_deadlocks_resolved_total",
		Help: "Total number of deadlocks resolved by cancelling a participant",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers tandem core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		TransferCounter,
		TransferFailedCounter,
		RetryCounter,
		CancellationCounter,
		DeadlockGauge,
		DeadlockResolvedCounter,
	)
}
