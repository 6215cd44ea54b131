package ledger

import (
	"testing"
	"time"

	"github.com/cuemby/zakuro/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store := storage.NewMemStore()
	t.Cleanup(func() { _ = store.Close() })
	return New(store, time.Hour)
}

func TestReserveInsufficientCredits(t *testing.T) {
	l := newTestLedger(t)

	err := l.Add("u1", 1_000_000, "seed")
	require.NoError(t, err)

	err = l.Reserve("u1", 2_000_000, "corr-1")
	require.Error(t, err)

	balance, err := l.Balance("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance, "failed reservation must not touch balance")
}

func TestReserveThenRefundRestoresBalance(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 10_000_000, "seed"))

	require.NoError(t, l.Reserve("u1", 2_000_000, "corr-2"))
	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(8_000_000), balance)

	require.NoError(t, l.Refund("corr-2"))
	balance, _ = l.Balance("u1")
	assert.Equal(t, int64(10_000_000), balance)
}

func TestReserveThenSettleLessThanReservedRefundsDifference(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 10_000_000, "seed"))

	require.NoError(t, l.Reserve("u1", 2_000_000, "corr-3"))
	require.NoError(t, l.Settle("corr-3", 1_500_000))

	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(8_500_000), balance, "balance should reflect only the actual cost")

	user, err := l.User("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), user.TotalSpentMicros)
}

func TestSettleClampsToReservedAmount(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 10_000_000, "seed"))
	require.NoError(t, l.Reserve("u1", 2_000_000, "corr-4"))

	require.NoError(t, l.Settle("corr-4", 5_000_000))

	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(8_000_000), balance, "settle must never debit more than was reserved")
}

func TestSettleUnknownCorrelationIDFails(t *testing.T) {
	l := newTestLedger(t)
	err := l.Settle("does-not-exist", 100)
	assert.Error(t, err)
}

func TestRefundIsNotDoubleApplied(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 5_000_000, "seed"))
	require.NoError(t, l.Reserve("u1", 1_000_000, "corr-5"))
	require.NoError(t, l.Refund("corr-5"))

	// A second refund attempt on the same, now-resolved correlation_id
	// must fail rather than crediting the user twice.
	err := l.Refund("corr-5")
	assert.Error(t, err)

	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(5_000_000), balance)
}

func TestSweeperRefundsStaleReservations(t *testing.T) {
	store := storage.NewMemStore()
	l := New(store, 20*time.Millisecond)
	require.NoError(t, l.Add("u1", 5_000_000, "seed"))
	require.NoError(t, l.Reserve("u1", 1_000_000, "corr-6"))

	l.Start()
	defer l.Stop()

	require.Eventually(t, func() bool {
		balance, _ := l.Balance("u1")
		return balance == 5_000_000
	}, time.Second, 5*time.Millisecond, "sweeper should have refunded the stale reservation")
}

func TestHistoryReturnsMostRecentEntriesInOrder(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 1_000_000, "deposit-1"))
	require.NoError(t, l.Add("u1", 1_000_000, "deposit-2"))
	require.NoError(t, l.Add("u1", 1_000_000, "deposit-3"))

	entries, err := l.History("u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "deposit-2", entries[0].Reason)
	assert.Equal(t, "deposit-3", entries[1].Reason)
}

func TestBalanceNeverGoesNegative(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Add("u1", 100, "seed"))

	err := l.Reserve("u1", 101, "corr-7")
	require.Error(t, err)

	balance, err := l.Balance("u1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balance, int64(0))
}
