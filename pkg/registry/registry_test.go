package registry

import (
	"testing"

	"github.com/cuemby/zakuro/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorker(endpoint string) *types.Worker {
	return &types.Worker{
		Name:          endpoint,
		Endpoint:      endpoint,
		CPUsTotal:     4,
		CPUsAvailable: 4,
		Status:        types.WorkerHealthy,
	}
}

func TestObserveAddsNewWorker(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "w1", snap[0].Endpoint)
	assert.Equal(t, types.WorkerHealthy, snap[0].Status)
}

func TestSnapshotIsACopyNotALiveView(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)

	snap := r.Snapshot()
	snap[0].CPUsAvailable = 0 // mutate the copy

	snap2 := r.Snapshot()
	assert.Equal(t, float64(4), snap2[0].CPUsAvailable, "mutating a snapshot must not affect the registry")
}

func TestUnhealthyAfterThreeConsecutiveFailures(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)

	r.ObserveFailure("w1")
	r.ObserveFailure("w1")
	snap := r.Snapshot()
	assert.Equal(t, types.WorkerHealthy, snap[0].Status, "two failures should not yet flip status")

	r.ObserveFailure("w1")
	snap = r.Snapshot()
	assert.Equal(t, types.WorkerUnhealthy, snap[0].Status)
}

func TestRemovedAfterTwentyConsecutiveFailures(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)

	for i := 0; i < RemoveAfter; i++ {
		r.ObserveFailure("w1")
	}

	snap := r.Snapshot()
	assert.Empty(t, snap)
}

func TestObserveAfterFailuresResetsConsecutiveFailures(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)
	r.ObserveFailure("w1")
	r.ObserveFailure("w1")

	r.Observe(testWorker("w1"), 5)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, types.WorkerHealthy, snap[0].Status)
	assert.Equal(t, 0, snap[0].ConsecutiveFailures)
}

func TestRoundRobinOrderIsStableAcrossSnapshots(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)
	r.Observe(testWorker("w2"), 10)
	r.Observe(testWorker("w3"), 10)

	first := r.Snapshot()
	second := r.Snapshot()

	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].Endpoint, second[i].Endpoint)
	}
}

func TestAdjustInFlightClampsAtZero(t *testing.T) {
	r := New()
	r.Observe(testWorker("w1"), 10)

	r.AdjustInFlight("w1", -5)
	assert.Equal(t, int64(0), r.InFlightTotal())
}
