package storage

import (
	"sync"

	"github.com/cuemby/zakuro/pkg/types"
	"github.com/google/btree"
)

// ledgerItem orders ledger rows by (UserID, sequence) so MemStore can
// return a user's history in append order via an ascending range scan,
// the same property BoltStore gets from its lexical bucket keys.
type ledgerItem struct {
	key   string
	entry *types.LedgerEntry
}

func (a ledgerItem) Less(than btree.Item) bool {
	return a.key < than.(ledgerItem).key
}

// MemStore is a Store implementation with no on-disk footprint, used
// when the broker runs with local_mode and a restart is allowed to lose
// history. Ledger entries are kept in a google/btree ordered tree so
// ListLedgerEntries doesn't need to sort on every call.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]*types.User
	ledger *btree.BTree
	seq    uint64
}

// NewMemStore creates an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]*types.User),
		ledger: btree.New(32),
	}
}

func (s *MemStore) GetUser(userID string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemStore) ListUsers() ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) PutUser(user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.UserID] = &cp
	return nil
}

func (s *MemStore) AppendLedgerEntry(entry *types.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cp := *entry
	key := entry.UserID + "/" + seqKey(s.seq)
	s.ledger.ReplaceOrInsert(ledgerItem{key: key, entry: &cp})
	return nil
}

func (s *MemStore) ListLedgerEntries(userID string) ([]*types.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.LedgerEntry
	prefix := userID + "/"
	pivot := ledgerItem{key: prefix}
	s.ledger.AscendGreaterOrEqual(pivot, func(item btree.Item) bool {
		li := item.(ledgerItem)
		if len(li.key) < len(prefix) || li.key[:len(prefix)] != prefix {
			return false
		}
		out = append(out, li.entry)
		return true
	})
	return out, nil
}

func (s *MemStore) Close() error { return nil }

// seqKey zero-pads a sequence number so lexical and numeric order agree.
func seqKey(seq uint64) string {
	const digits = "0123456789"
	buf := [20]byte{}
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = digits[seq%10]
		seq /= 10
	}
	return string(buf[:])
}
