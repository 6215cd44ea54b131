// Package selector picks a worker from a registry snapshot for a given
// set of requirements and strategy. Select is a pure function: it never
// touches the registry, ledger, or network, which makes it exhaustively
// table-testable without any of the broker's live state.
package selector

import (
	"errors"
	"sort"
	"sync/atomic"

	"github.com/cuemby/zakuro/pkg/types"
)

// ErrNoneAvailable is returned when no worker in the snapshot satisfies
// the request's requirements.
var ErrNoneAvailable = errors.New("selector: no workers available")

// RoundRobinCounter is a broker-wide, strategy-scoped monotonic counter.
// It advances only when round_robin actually makes a selection, never
// per attempt, per spec.md §4.4.
type RoundRobinCounter struct {
	n atomic.Uint64
}

// Next returns the counter value to use for this selection and
// advances it.
func (c *RoundRobinCounter) Next() uint64 {
	return c.n.Add(1) - 1
}

func fits(w *types.Worker, reqs types.Requirements) bool {
	if w.Status != types.WorkerHealthy {
		return false
	}
	if w.CPUsTotal > 0 && float64(w.InFlight) >= w.CPUsTotal {
		return false
	}
	if w.CPUsAvailable < reqs.CPUs {
		return false
	}
	if w.MemoryAvailableBytes < reqs.MemoryBytes {
		return false
	}
	if w.GPUsAvailable < reqs.GPUs {
		return false
	}
	if len(reqs.Tags) > 0 && !hasAllTags(w.Tags, reqs.Tags) {
		return false
	}
	return true
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// filter returns the subset of snapshot eligible for reqs, in the
// snapshot's original (stable, registration) order.
func filter(snapshot []*types.Worker, reqs types.Requirements) []*types.Worker {
	out := make([]*types.Worker, 0, len(snapshot))
	for _, w := range snapshot {
		if fits(w, reqs) {
			out = append(out, w)
		}
	}
	return out
}

// EligibleWorkers exposes the filter step on its own, for callers that
// need the eligible set without picking just one (price estimation
// over a whole snapshot, for instance).
func EligibleWorkers(snapshot []*types.Worker, reqs types.Requirements) []*types.Worker {
	return filter(snapshot, reqs)
}

// Select applies the filter step and then the strategy's scoring and
// tie-break rules to pick exactly one worker, or ErrNoneAvailable if
// the filtered set is empty. rr is consulted (and only then advanced)
// for Strategy == round_robin; it may be nil for other strategies.
func Select(reqs types.Requirements, strategy types.Strategy, snapshot []*types.Worker, rr *RoundRobinCounter) (*types.Worker, error) {
	eligible := filter(snapshot, reqs)
	if len(eligible) == 0 {
		return nil, ErrNoneAvailable
	}

	switch strategy {
	case types.StrategyBestLatency:
		return bestLatency(eligible, reqs), nil
	case types.StrategyBestAvailability:
		return bestAvailability(eligible), nil
	case types.StrategyRoundRobin:
		idx := int(rr.Next() % uint64(len(eligible)))
		return eligible[idx], nil
	case types.StrategyBestPrice:
		fallthrough
	default:
		return bestPrice(eligible, reqs), nil
	}
}

func bestPrice(eligible []*types.Worker, reqs types.Requirements) *types.Worker {
	best := make([]*types.Worker, len(eligible))
	copy(best, eligible)
	sort.SliceStable(best, func(i, j int) bool {
		ci, cj := best[i].ProjectedCost(reqs), best[j].ProjectedCost(reqs)
		if ci != cj {
			return ci < cj
		}
		if best[i].LatencyEWMAMs != best[j].LatencyEWMAMs {
			return best[i].LatencyEWMAMs < best[j].LatencyEWMAMs
		}
		return best[i].Endpoint < best[j].Endpoint
	})
	return best[0]
}

func bestLatency(eligible []*types.Worker, reqs types.Requirements) *types.Worker {
	best := make([]*types.Worker, len(eligible))
	copy(best, eligible)
	sort.SliceStable(best, func(i, j int) bool {
		if best[i].LatencyEWMAMs != best[j].LatencyEWMAMs {
			return best[i].LatencyEWMAMs < best[j].LatencyEWMAMs
		}
		ci, cj := best[i].ProjectedCost(reqs), best[j].ProjectedCost(reqs)
		if ci != cj {
			return ci < cj
		}
		return best[i].Endpoint < best[j].Endpoint
	})
	return best[0]
}

func bestAvailability(eligible []*types.Worker) *types.Worker {
	best := make([]*types.Worker, len(eligible))
	copy(best, eligible)
	sort.SliceStable(best, func(i, j int) bool {
		ai, aj := best[i].AvailabilityRatio(), best[j].AvailabilityRatio()
		if ai != aj {
			return ai > aj
		}
		return best[i].LatencyEWMAMs < best[j].LatencyEWMAMs
	})
	return best[0]
}
