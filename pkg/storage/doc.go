/*
Package storage persists the broker's users and ledger history.

Two implementations satisfy Store: BoltStore (go.etcd.io/bbolt, one
file, two buckets: users and ledger) for production, and MemStore
(google/btree for ordered ledger scans) for local_mode where losing
history across a restart is acceptable. The worker registry and
affinity table are never persisted here — the registry is rebuilt by
discovery and the affinity table starts empty (see pkg/registry,
pkg/affinity).
*/
package storage
