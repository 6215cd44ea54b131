package storage

import (
	"github.com/cuemby/zakuro/pkg/types"
)

// Store persists the two pieces of broker state that must survive a
// restart: user accounts and their append-only ledger history. Worker
// registry and affinity state are never persisted: the registry is
// rebuilt by discovery and the affinity table starts empty (see
// pkg/registry, pkg/affinity).
type Store interface {
	// Users
	GetUser(userID string) (*types.User, error)
	ListUsers() ([]*types.User, error)
	PutUser(user *types.User) error

	// Ledger
	AppendLedgerEntry(entry *types.LedgerEntry) error
	ListLedgerEntries(userID string) ([]*types.LedgerEntry, error)

	Close() error
}

// ErrNotFound is returned by Get methods when the key is absent.
var ErrNotFound = notFoundErr{}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }
