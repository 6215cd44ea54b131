// Package affinity binds stateful instances created via create_instance
// to the one worker they ran on, so later call_method requests for the
// same instance_id bypass the selector entirely.
package affinity

import (
	"sync"
	"time"

	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/types"
)

// DefaultTTL is the idle period after which an unused entry is reaped
// (spec.md §4.5: 30 minutes).
const DefaultTTL = 30 * time.Minute

// Table is the broker's instance_id -> worker endpoint binding.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*types.AffinityEntry
	ttl     time.Duration
	stopCh  chan struct{}
}

// New creates an empty Table with the given idle TTL.
func New(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table{
		entries: make(map[string]*types.AffinityEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the reaper goroutine that evicts idle entries.
func (t *Table) Start() {
	go func() {
		ticker := time.NewTicker(t.ttl / 10)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.reap()
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop halts the reaper.
func (t *Table) Stop() {
	close(t.stopCh)
}

// Bind records that instanceID now lives on workerEndpoint, owned by
// ownerUserID. Called after a successful create_instance forward.
func (t *Table) Bind(instanceID, workerEndpoint, ownerUserID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.entries[instanceID] = &types.AffinityEntry{
		InstanceID:     instanceID,
		WorkerEndpoint: workerEndpoint,
		OwnerUserID:    ownerUserID,
		CreatedAt:      now,
		LastUsedAt:     now,
	}
	metrics.AffinityEntriesTotal.Set(float64(len(t.entries)))
}

// Lookup returns the worker endpoint bound to instanceID, refreshing
// its last-used timestamp. The second return value is false if the
// instance has no (or no longer has a) binding.
func (t *Table) Lookup(instanceID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[instanceID]
	if !ok {
		return "", false
	}
	e.LastUsedAt = time.Now()
	return e.WorkerEndpoint, true
}

// Evict removes instanceID's binding immediately, used when the broker
// discovers the bound worker is no longer healthy (AffinityLost).
func (t *Table) Evict(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, instanceID)
	metrics.AffinityEntriesTotal.Set(float64(len(t.entries)))
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table) reap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-t.ttl)
	for id, e := range t.entries {
		if e.LastUsedAt.Before(cutoff) {
			delete(t.entries, id)
		}
	}
	metrics.AffinityEntriesTotal.Set(float64(len(t.entries)))
}
