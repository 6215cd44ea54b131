package metrics

import "time"

// WorkerRegistry is the subset of *registry.Registry the collector
// needs. Declared as an interface here (rather than importing
// pkg/registry) to keep pkg/metrics free of a dependency on the
// domain packages it instruments.
type WorkerRegistry interface {
	CountByStatus() map[string]int
	InFlightTotal() int64
}

// CreditLedger is the subset of *ledger.Ledger the collector needs.
type CreditLedger interface {
	UserCount() int
	PendingReservations() int
}

// Collector periodically pushes registry/ledger gauges on a ticker,
// trading inline computation on every HTTP request for a steady
// background refresh.
type Collector struct {
	registry WorkerRegistry
	ledger   CreditLedger
	stopCh   chan struct{}
}

// NewCollector creates a Collector over the broker's registry and
// ledger.
func NewCollector(registry WorkerRegistry, ledger CreditLedger) *Collector {
	return &Collector{
		registry: registry,
		ledger:   ledger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting on a 5s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRegistryMetrics()
	c.collectLedgerMetrics()
}

func (c *Collector) collectRegistryMetrics() {
	if c.registry == nil {
		return
	}
	for status, count := range c.registry.CountByStatus() {
		WorkersTotal.WithLabelValues(status).Set(float64(count))
	}
	WorkersInFlight.Set(float64(c.registry.InFlightTotal()))
}

func (c *Collector) collectLedgerMetrics() {
	if c.ledger == nil {
		return
	}
	LedgerUsersTotal.Set(float64(c.ledger.UserCount()))
	LedgerReservationsPending.Set(float64(c.ledger.PendingReservations()))
}
