// Package session models the command-layer contract the transactional core
// is invoked through (spec.md §6): a Session carrying the calling
// connection's arguments and selected database, and a SegmentManager that
// resolves a user key to a chunk and KVStore while holding a per-key lock
// for the operation's duration.
package session

import "github.com/tesseradb/tessera/internal/kvstore"

// LockMode selects the key lock a SegmentManager acquires on behalf of a
// caller. TTL rewrites always request LockExclusive before entering their
// retry loop (spec.md §5).
type LockMode int

const (
	// LockShared is a reader lock: multiple holders may proceed together.
	LockShared LockMode = iota
	// LockExclusive is a writer lock: sole holder for its duration.
	LockExclusive
)

// Session is the per-invocation context the command layer hands into the
// transactional core: which database the caller is operating on and which
// ServerEntry (and therefore SegmentManager) resolves its keys.
type Session struct {
	Args   [][]byte
	DBID   uint32
	Server *ServerEntry
}

// ServerEntry bundles the process-wide resources a Session's operations
// reach through — here, just the segment manager. A real deployment would
// hang connection state and metrics registries off this too.
type ServerEntry struct {
	SegmentMgr SegmentManager
}

// SegmentManager resolves a user key to its owning chunk and KVStore while
// holding a per-(db,key) lock, releasable via the returned unlock func on
// every exit path. Chunk/store selection policy is out of scope (spec.md
// Non-goals); DefaultSegmentManager below models the contract with the
// simplest possible policy, a single fixed store and chunk.
type SegmentManager interface {
	GetDBWithKeyLock(session *Session, key []byte, mode LockMode) (chunkID uint32, store *kvstore.KVStore, unlock func(), err error)
}
