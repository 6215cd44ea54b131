// Package ledger implements the mesh's credit accounting: per-user
// balances with reserve/settle/refund semantics over a fixed-point
// (micros) balance, backed by pkg/storage for durability.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/zakuro/pkg/log"
	"github.com/cuemby/zakuro/pkg/metrics"
	"github.com/cuemby/zakuro/pkg/storage"
	"github.com/cuemby/zakuro/pkg/types"
	"github.com/cuemby/zakuro/pkg/zerr"
	"github.com/google/uuid"
)

// DefaultReservationTTL is the age past which the sweeper auto-refunds
// an unresolved reservation.
const DefaultReservationTTL = 5 * time.Minute

// reservation is an in-flight hold awaiting settle or refund.
type reservation struct {
	userID      string
	amountMicro int64
	createdAt   time.Time
}

// Ledger tracks user balances and their append-only transaction history.
//
// Mutation of a single user's balance is serialized by a per-user entry
// in locks, lazily created and never removed. Cross-user operations
// proceed independently.
type Ledger struct {
	store storage.Store
	ttl   time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	resMu sync.Mutex
	res   map[string]*reservation

	stopCh chan struct{}
}

// New creates a Ledger backed by store. Call Start to launch the
// reservation sweeper.
func New(store storage.Store, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &Ledger{
		store:  store,
		ttl:    ttl,
		locks:  make(map[string]*sync.Mutex),
		res:    make(map[string]*reservation),
		stopCh: make(chan struct{}),
	}
}

// Start launches the background sweeper that refunds reservations older
// than the ledger's TTL.
func (l *Ledger) Start() {
	go func() {
		ticker := time.NewTicker(l.ttl / 5)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweeper.
func (l *Ledger) Stop() {
	close(l.stopCh)
}

func (l *Ledger) lockFor(userID string) *sync.Mutex {
	l.locksMu.Lock()
	defer l.locksMu.Unlock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

// Balance returns the user's current balance in micros, creating the
// account with a zero balance if it does not yet exist.
func (l *Ledger) Balance(userID string) (int64, error) {
	user, err := l.getOrCreate(userID)
	if err != nil {
		return 0, err
	}
	return user.BalanceMicros, nil
}

func (l *Ledger) getOrCreate(userID string) (*types.User, error) {
	user, err := l.store.GetUser(userID)
	if err == storage.ErrNotFound {
		user = &types.User{UserID: userID}
		if err := l.store.PutUser(user); err != nil {
			return nil, err
		}
		return user, nil
	}
	return user, err
}

// Reserve pre-authorizes amountMicro against userID under
// correlationID. It fails with zerr.KindInsufficientCredits if the
// user's balance cannot cover the amount.
func (l *Ledger) Reserve(userID string, amountMicro int64, correlationID string) error {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := l.getOrCreate(userID)
	if err != nil {
		return err
	}
	if user.BalanceMicros < amountMicro {
		metrics.ReservationsTotal.WithLabelValues("insufficient_credits").Inc()
		return zerr.New(zerr.KindInsufficientCredits, fmt.Sprintf(
			"user %s has %d micros, needs %d", userID, user.BalanceMicros, amountMicro))
	}

	user.BalanceMicros -= amountMicro
	if err := l.store.PutUser(user); err != nil {
		return err
	}

	entry := &types.LedgerEntry{
		Timestamp:     time.Now(),
		UserID:        userID,
		DeltaMicros:   -amountMicro,
		Reason:        "reserve",
		CorrelationID: correlationID,
		State:         types.LedgerStateReserved,
	}
	if err := l.store.AppendLedgerEntry(entry); err != nil {
		return err
	}

	l.resMu.Lock()
	l.res[correlationID] = &reservation{userID: userID, amountMicro: amountMicro, createdAt: time.Now()}
	l.resMu.Unlock()

	metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
	return nil
}

// Settle converts the reservation identified by correlationID into a
// final debit of actualMicro, refunding the difference back to the
// user's balance. An actualMicro larger than the originally reserved
// amount is clamped to the reserved amount, so nothing beyond the
// reservation is ever debited.
func (l *Ledger) Settle(correlationID string, actualMicro int64) error {
	l.resMu.Lock()
	r, ok := l.res[correlationID]
	if ok {
		delete(l.res, correlationID)
	}
	l.resMu.Unlock()
	if !ok {
		return fmt.Errorf("settle: no reservation for correlation_id %s", correlationID)
	}

	if actualMicro > r.amountMicro {
		actualMicro = r.amountMicro
	}
	refundMicro := r.amountMicro - actualMicro

	mu := l.lockFor(r.userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := l.getOrCreate(r.userID)
	if err != nil {
		return err
	}
	if refundMicro > 0 {
		user.BalanceMicros += refundMicro
	}
	user.TotalSpentMicros += actualMicro
	if err := l.store.PutUser(user); err != nil {
		return err
	}

	entry := &types.LedgerEntry{
		Timestamp:     time.Now(),
		UserID:        r.userID,
		DeltaMicros:   refundMicro,
		Reason:        "settle",
		CorrelationID: correlationID,
		State:         types.LedgerStateSettled,
	}
	if err := l.store.AppendLedgerEntry(entry); err != nil {
		return err
	}

	metrics.ReservationsTotal.WithLabelValues("settled").Inc()
	return nil
}

// Refund fully returns the reservation identified by correlationID to
// the user's balance. Refunding an already-resolved (settled or
// previously refunded) correlation_id is an error.
func (l *Ledger) Refund(correlationID string) error {
	return l.refund(correlationID, "refund", "refunded")
}

func (l *Ledger) refund(correlationID, reason, outcome string) error {
	l.resMu.Lock()
	r, ok := l.res[correlationID]
	if ok {
		delete(l.res, correlationID)
	}
	l.resMu.Unlock()
	if !ok {
		return fmt.Errorf("refund: no reservation for correlation_id %s", correlationID)
	}

	mu := l.lockFor(r.userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := l.getOrCreate(r.userID)
	if err != nil {
		return err
	}
	user.BalanceMicros += r.amountMicro
	if err := l.store.PutUser(user); err != nil {
		return err
	}

	entry := &types.LedgerEntry{
		Timestamp:     time.Now(),
		UserID:        r.userID,
		DeltaMicros:   r.amountMicro,
		Reason:        reason,
		CorrelationID: correlationID,
		State:         types.LedgerStateRefunded,
	}
	if err := l.store.AppendLedgerEntry(entry); err != nil {
		return err
	}

	metrics.ReservationsTotal.WithLabelValues(outcome).Inc()
	return nil
}

// Add deposits amountMicro into userID's balance, recording a deposit
// ledger entry. Used by the admin /credits/{user}/add endpoint and the
// zc-broker credits add CLI.
func (l *Ledger) Add(userID string, amountMicro int64, description string) error {
	mu := l.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := l.getOrCreate(userID)
	if err != nil {
		return err
	}
	user.BalanceMicros += amountMicro
	if err := l.store.PutUser(user); err != nil {
		return err
	}

	entry := &types.LedgerEntry{
		Timestamp:     time.Now(),
		UserID:        userID,
		DeltaMicros:   amountMicro,
		Reason:        description,
		CorrelationID: uuid.NewString(),
		State:         types.LedgerStateDeposit,
	}
	return l.store.AppendLedgerEntry(entry)
}

// History returns the most recent limit entries for userID, newest last.
func (l *Ledger) History(userID string, limit int) ([]*types.LedgerEntry, error) {
	entries, err := l.store.ListLedgerEntries(userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// User returns the full account record for userID.
func (l *Ledger) User(userID string) (*types.User, error) {
	return l.getOrCreate(userID)
}

// Users returns every known account.
func (l *Ledger) Users() ([]*types.User, error) {
	return l.store.ListUsers()
}

// UserCount returns the number of known accounts, used by the metrics
// collector. Errors reading the store are reported as zero rather than
// propagated, since this is a best-effort gauge, not a request path.
func (l *Ledger) UserCount() int {
	users, err := l.store.ListUsers()
	if err != nil {
		return 0
	}
	return len(users)
}

// PendingReservations returns the number of reservations awaiting
// settlement or refund.
func (l *Ledger) PendingReservations() int {
	l.resMu.Lock()
	defer l.resMu.Unlock()
	return len(l.res)
}

func (l *Ledger) sweep() {
	l.resMu.Lock()
	var stale []string
	cutoff := time.Now().Add(-l.ttl)
	for id, r := range l.res {
		if r.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	l.resMu.Unlock()

	for _, id := range stale {
		if err := l.refund(id, "sweep", "swept"); err != nil {
			log.WithComponent("ledger").Warn().Err(err).Str("correlation_id", id).Msg("sweeper failed to refund stale reservation")
			continue
		}
		metrics.SweeperRefundsTotal.Inc()
		log.WithComponent("ledger").Info().Str("correlation_id", id).Msg("swept stale reservation")
	}
}
