package affinity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindThenLookup(t *testing.T) {
	tbl := New(time.Hour)
	tbl.Bind("inst-1", "w1", "u1")

	endpoint, ok := tbl.Lookup("inst-1")
	require.True(t, ok)
	assert.Equal(t, "w1", endpoint)
}

func TestLookupUnknownInstanceFails(t *testing.T) {
	tbl := New(time.Hour)
	_, ok := tbl.Lookup("nope")
	assert.False(t, ok)
}

func TestEvictRemovesBinding(t *testing.T) {
	tbl := New(time.Hour)
	tbl.Bind("inst-1", "w1", "u1")
	tbl.Evict("inst-1")

	_, ok := tbl.Lookup("inst-1")
	assert.False(t, ok)
}

func TestReaperEvictsIdleEntries(t *testing.T) {
	tbl := New(20 * time.Millisecond)
	tbl.Bind("inst-1", "w1", "u1")

	tbl.Start()
	defer tbl.Stop()

	require.Eventually(t, func() bool {
		return tbl.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestLookupRefreshesLastUsed(t *testing.T) {
	tbl := New(50 * time.Millisecond)
	tbl.Bind("inst-1", "w1", "u1")

	// Repeated lookups should keep the entry alive past the TTL that
	// would otherwise have reaped an untouched entry.
	tbl.Start()
	defer tbl.Stop()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, ok := tbl.Lookup("inst-1")
		require.True(t, ok)
		time.Sleep(10 * time.Millisecond)
	}
}
