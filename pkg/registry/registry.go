// Package registry tracks the set of workers the broker currently
// knows about: their advertised resources/pricing, health status, and
// EWMA latency, as fed by the peer discovery loop.
package registry

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/types"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/jinzhu/copier"
)

// UnhealthyAfter is the number of consecutive failed probes after which
// a worker's status flips to unhealthy.
const UnhealthyAfter = 3

// RemoveAfter is the number of consecutive failed probes after which a
// worker is dropped from the registry entirely.
const RemoveAfter = 20

// ewmaAlpha is the smoothing factor used for latency tracking
// (spec.md §4.3: alpha=0.3).
const ewmaAlpha = 0.3

// entry is the registry's internal bookkeeping for one worker, holding
// the EWMA state alongside the public snapshot type.
type entry struct {
	worker  types.Worker
	latency ewma.MovingAverage
}

// Registry holds the live worker set keyed by endpoint in an
// orderedmap so round-robin selection and any full iteration see a
// stable, reproducible order across calls.
type Registry struct {
	mu      sync.RWMutex
	workers *orderedmap.OrderedMap[string, *entry]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		workers: orderedmap.NewOrderedMap[string, *entry](),
	}
}

// Observe records a successful /info probe for a worker, creating the
// entry if it's new and updating EWMA latency and health counters.
func (r *Registry) Observe(w *types.Worker, latencyMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.workers.Get(w.Endpoint)
	if !ok {
		e = &entry{latency: ewma.NewMovingAverageWithAge(2/ewmaAlpha - 1)}
		r.workers.Set(w.Endpoint, e)
	}

	e.latency.Add(latencyMs)
	w.LatencyEWMAMs = e.latency.Value()
	w.LastSeenMs = time.Now().UnixMilli()
	w.ConsecutiveFailures = 0
	w.Status = types.WorkerHealthy
	e.worker = *w

	metrics.DiscoveryProbeDuration.Observe(latencyMs / 1000)
}

// ObserveFailure records a failed probe against endpoint, marking the
// worker unhealthy after UnhealthyAfter consecutive failures and
// removing it entirely after RemoveAfter.
func (r *Registry) ObserveFailure(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.workers.Get(endpoint)
	if !ok {
		return
	}
	e.worker.ConsecutiveFailures++
	if e.worker.ConsecutiveFailures >= RemoveAfter {
		r.workers.Delete(endpoint)
		return
	}
	if e.worker.ConsecutiveFailures >= UnhealthyAfter {
		e.worker.Status = types.WorkerUnhealthy
	}
}

// MarkUnhealthy immediately flags endpoint unhealthy, used by the
// broker facade when a forwarded request fails against a worker that
// discovery hasn't yet re-probed (spec.md §4.6 step 6).
func (r *Registry) MarkUnhealthy(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.workers.Get(endpoint); ok {
		e.worker.Status = types.WorkerUnhealthy
	}
}

// AdjustInFlight atomically bumps a worker's in-flight request hint by
// delta (positive on dispatch, negative on completion).
func (r *Registry) AdjustInFlight(endpoint string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.workers.Get(endpoint); ok {
		e.worker.InFlight += delta
		if e.worker.InFlight < 0 {
			e.worker.InFlight = 0
		}
	}
}

// Snapshot returns an immutable, deep-copied view of every known
// worker in stable registration order. The selector operates only on
// snapshots so registry mutation never races with selection (spec.md
// §5: "registry snapshots are immutable once taken").
func (r *Registry) Snapshot() []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Worker, 0, r.workers.Len())
	for el := r.workers.Front(); el != nil; el = el.Next() {
		var cp types.Worker
		if err := copier.Copy(&cp, &el.Value.worker); err != nil {
			continue
		}
		out = append(out, &cp)
	}
	return out
}

// CountByStatus returns the number of known workers per status (keyed
// by the string form of types.WorkerStatus), used by the metrics
// collector to populate zakuro_workers_total.
func (r *Registry) CountByStatus() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for el := r.workers.Front(); el != nil; el = el.Next() {
		counts[string(el.Value.worker.Status)]++
	}
	return counts
}

// InFlightTotal sums in-flight hints across all known workers.
func (r *Registry) InFlightTotal() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for el := r.workers.Front(); el != nil; el = el.Next() {
		total += el.Value.worker.InFlight
	}
	return total
}

// Get returns a single worker's current snapshot by endpoint.
func (r *Registry) Get(endpoint string) (*types.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.workers.Get(endpoint)
	if !ok {
		return nil, false
	}
	var cp types.Worker
	if err := copier.Copy(&cp, &e.worker); err != nil {
		return nil, false
	}
	return &cp, true
}
