package selector

import (
	"testing"

	"github.com/cuemby/zakuro/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseReqs() types.Requirements {
	return types.Requirements{
		CPUs:                  1,
		MemoryBytes:           1 << 30,
		EstimatedDurationSecs: 2,
	}
}

func TestSelectReturnsNoneAvailableOnEmptySnapshot(t *testing.T) {
	_, err := Select(baseReqs(), types.StrategyBestPrice, nil, nil)
	assert.ErrorIs(t, err, ErrNoneAvailable)
}

func TestFilterExcludesUnhealthyAndUnderResourced(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "w1", Status: types.WorkerUnhealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32},
		{Endpoint: "w2", Status: types.WorkerHealthy, CPUsAvailable: 0.5, MemoryAvailableBytes: 1 << 32},
		{Endpoint: "w3", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32},
	}

	w, err := Select(baseReqs(), types.StrategyBestPrice, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "w3", w.Endpoint)
}

func TestFilterRequiresAllTags(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "w1", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, Tags: []string{"gpu"}},
		{Endpoint: "w2", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, Tags: []string{"gpu", "fast"}},
	}
	reqs := baseReqs()
	reqs.Tags = []string{"gpu", "fast"}

	w, err := Select(reqs, types.StrategyBestPrice, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "w2", w.Endpoint)
}

func TestBestPriceMinimizesProjectedCost(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "cheap", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, PricePerCPUSecond: 0.001},
		{Endpoint: "expensive", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, PricePerCPUSecond: 0.01},
	}

	w, err := Select(baseReqs(), types.StrategyBestPrice, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "cheap", w.Endpoint)
}

func TestBestPriceTieBreaksOnLatencyThenEndpoint(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "b", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, PricePerCPUSecond: 0.001, LatencyEWMAMs: 5},
		{Endpoint: "a", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, PricePerCPUSecond: 0.001, LatencyEWMAMs: 5},
	}

	w, err := Select(baseReqs(), types.StrategyBestPrice, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", w.Endpoint, "equal price and latency must break ties lexicographically")
}

func TestBestLatencyMinimizesLatency(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "slow", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, LatencyEWMAMs: 100},
		{Endpoint: "fast", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32, LatencyEWMAMs: 5},
	}

	w, err := Select(baseReqs(), types.StrategyBestLatency, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "fast", w.Endpoint)
}

func TestBestAvailabilityMaximizesRatio(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "busy", Status: types.WorkerHealthy, CPUsTotal: 8, CPUsAvailable: 1, MemoryAvailableBytes: 1 << 32},
		{Endpoint: "idle", Status: types.WorkerHealthy, CPUsTotal: 8, CPUsAvailable: 7, MemoryAvailableBytes: 1 << 32},
	}

	w, err := Select(baseReqs(), types.StrategyBestAvailability, snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, "idle", w.Endpoint)
}

func TestRoundRobinRotatesAndAdvancesOnlyOnSelection(t *testing.T) {
	snapshot := []*types.Worker{
		{Endpoint: "w1", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32},
		{Endpoint: "w2", Status: types.WorkerHealthy, CPUsAvailable: 4, MemoryAvailableBytes: 1 << 32},
	}
	rr := &RoundRobinCounter{}

	first, err := Select(baseReqs(), types.StrategyRoundRobin, snapshot, rr)
	require.NoError(t, err)
	second, err := Select(baseReqs(), types.StrategyRoundRobin, snapshot, rr)
	require.NoError(t, err)
	third, err := Select(baseReqs(), types.StrategyRoundRobin, snapshot, rr)
	require.NoError(t, err)

	assert.Equal(t, "w1", first.Endpoint)
	assert.Equal(t, "w2", second.Endpoint)
	assert.Equal(t, "w1", third.Endpoint, "round robin must wrap back to the first worker")
}
