package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zakuro_workers_total",
			Help: "Total number of known workers by health status",
		},
		[]string{"status"},
	)

	WorkersInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_workers_inflight_requests",
			Help: "Sum of in-flight requests across all known workers",
		},
	)

	DiscoveryProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zakuro_discovery_probe_duration_seconds",
			Help:    "Time taken to probe a worker's /info endpoint",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiscoveryCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zakuro_discovery_cycles_total",
			Help: "Total number of peer discovery cycles completed",
		},
	)

	// Selector metrics
	SelectorDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zakuro_selector_decisions_total",
			Help: "Total number of selector decisions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// Ledger metrics
	LedgerUsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_ledger_users_total",
			Help: "Total number of known user accounts",
		},
	)

	LedgerReservationsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_ledger_reservations_pending",
			Help: "Number of reservations awaiting settlement or refund",
		},
	)

	ReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zakuro_reservations_total",
			Help: "Total number of credit reservations by outcome",
		},
		[]string{"outcome"}, // reserved, insufficient_credits, settled, refunded, swept
	)

	SweeperRefundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zakuro_sweeper_refunds_total",
			Help: "Total number of reservations auto-refunded by the TTL sweeper",
		},
	)

	// Broker facade metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zakuro_requests_total",
			Help: "Total number of /execute requests by strategy and HTTP status",
		},
		[]string{"strategy", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zakuro_request_duration_seconds",
			Help:    "End-to-end /execute request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	ForwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zakuro_forward_duration_seconds",
			Help:    "Broker-observed duration of the downstream worker call",
			Buckets: prometheus.DefBuckets,
		},
	)

	AffinityEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_affinity_entries_total",
			Help: "Number of live instance affinity entries",
		},
	)

	AffinityLostTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zakuro_affinity_lost_total",
			Help: "Total number of call_method requests that failed with AffinityLost",
		},
	)

	// Worker node metrics
	TasksExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zakuro_worker_tasks_executed_total",
			Help: "Total number of tasks executed by this worker by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	PoolInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_worker_pool_slots_in_use",
			Help: "Number of execution pool slots currently occupied",
		},
	)

	InstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zakuro_worker_instances_total",
			Help: "Number of stateful instances currently held in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WorkersTotal,
		WorkersInFlight,
		DiscoveryProbeDuration,
		DiscoveryCyclesTotal,
		SelectorDecisionsTotal,
		LedgerUsersTotal,
		LedgerReservationsPending,
		ReservationsTotal,
		SweeperRefundsTotal,
		RequestsTotal,
		RequestDuration,
		ForwardDuration,
		AffinityEntriesTotal,
		AffinityLostTotal,
		TasksExecutedTotal,
		PoolInUse,
		InstancesTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
