package session

import "github.com/tesseradb/tessera/internal/kvstore"

// DefaultSegmentManager is the simplest policy satisfying SegmentManager's
// contract: every key belongs to the same fixed chunk and KVStore. Real
// chunk/store selection (hash-partitioning across many KVStores) is
// explicitly out of scope for this core (spec.md Non-goals); what matters
// here is that the lock discipline around that selection is exercised.
type DefaultSegmentManager struct {
	ChunkID uint32
	Store   *kvstore.KVStore
	locks   *keyLockTable
}

// NewDefaultSegmentManager wraps a single KVStore under a fixed chunk id.
func NewDefaultSegmentManager(chunkID uint32, store *kvstore.KVStore) *DefaultSegmentManager {
	return &DefaultSegmentManager{ChunkID: chunkID, Store: store, locks: newKeyLockTable()}
}

// GetDBWithKeyLock implements SegmentManager.
func (m *DefaultSegmentManager) GetDBWithKeyLock(session *Session, key []byte, mode LockMode) (uint32, *kvstore.KVStore, func(), error) {
	unlock := m.locks.Lock(session.DBID, key, mode)
	return m.ChunkID, m.Store, unlock, nil
}
