package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/zakuro/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketUsers  = []byte("users")
	bucketLedger = []byte("ledger")
)

// BoltStore persists users and ledger entries in a single BoltDB file.
// Ledger entries are appended to the single ledger bucket under keys of
// the form "<user>/<sequence>", where the sequence is the bucket's
// monotonically increasing counter, so a prefix scan returns one user's
// history in order without requiring a secondary index.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB-backed Store rooted
// at dataDir/zakuro.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "zakuro.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return fmt.Errorf("create users bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketLedger); err != nil {
			return fmt.Errorf("create ledger bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// GetUser looks up a user account by ID.
func (s *BoltStore) GetUser(userID string) (*types.User, error) {
	var user types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketUsers).Get([]byte(userID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every known user account.
func (s *BoltStore) ListUsers() ([]*types.User, error) {
	var users []*types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			var user types.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			users = append(users, &user)
			return nil
		})
	})
	return users, err
}

// PutUser upserts a user account.
func (s *BoltStore) PutUser(user *types.User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketUsers).Put([]byte(user.UserID), data)
	})
}

// AppendLedgerEntry stores one more history row for entry.UserID under a
// key that sorts after every prior entry for that user.
func (s *BoltStore) AppendLedgerEntry(entry *types.LedgerEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLedger)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s/%020d", entry.UserID, seq)
		return b.Put([]byte(key), data)
	})
}

// ListLedgerEntries returns userID's history in append order.
func (s *BoltStore) ListLedgerEntries(userID string) ([]*types.LedgerEntry, error) {
	var entries []*types.LedgerEntry
	prefix := []byte(userID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLedger).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var entry types.LedgerEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	return entries, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
