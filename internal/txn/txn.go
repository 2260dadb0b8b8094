// Package txn implements the optimistic transaction and cursor entities
// spec.md §3.4/§4.2 describe, layered directly over internal/lsm.Engine.
// A Transaction buffers writes in memory and only applies them to the engine
// at commit time, when it revalidates every key it wrote against the
// engine's per-key version counter — see internal/lsm.Engine.CommitWriteSet
// for the actual conflict check.
package txn

import (
	"sort"
	"sync"

	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/lsm"
)

type state int

const (
	active state = iota
	committed
	rolledBack
)

type writeOp struct {
	value  []byte
	delete bool
}

// Transaction is a single optimistic transaction over the engine's
// keyspace. It is not safe for concurrent use by multiple goroutines — the
// spec models exclusive per-handler ownership (spec.md §9 "Ownership of
// transactions").
type Transaction struct {
	id         uint64
	engine     *lsm.Engine
	deregister func(id uint64)

	mu           sync.Mutex
	st           state
	readVersions map[string]uint64
	writes       map[string]writeOp
}

// New constructs a Transaction and registers it in the caller's
// uncommitted set via register. The KVStore is the only intended caller;
// it owns id allocation and the uncommitted-set bookkeeping.
func New(id uint64, engine *lsm.Engine, register, deregister func(id uint64)) *Transaction {
	register(id)
	return &Transaction{
		id:           id,
		engine:       engine,
		deregister:   deregister,
		readVersions: make(map[string]uint64),
		writes:       make(map[string]writeOp),
	}
}

// ID returns the transaction's identity, as registered in the KVStore's
// uncommitted set.
func (t *Transaction) ID() uint64 { return t.id }

func (t *Transaction) touch(key []byte) {
	k := string(key)
	if _, ok := t.readVersions[k]; ok {
		return
	}
	t.readVersions[k] = t.engine.CurrentVersion(key)
}

// Get returns the value visible to this transaction: its own buffered
// writes take precedence over the committed engine state (read-your-writes,
// spec.md Testable Property 4).
func (t *Transaction) Get(key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return nil, errs.BadState
	}
	t.touch(key)

	if w, ok := t.writes[string(key)]; ok {
		if w.delete {
			return nil, errs.NotFound
		}
		return w.value, nil
	}

	entry, ok, err := t.engine.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound
	}
	return entry.Value, nil
}

// Set buffers a key/value write, visible only to this transaction until
// commit.
func (t *Transaction) Set(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return errs.BadState
	}
	t.touch(key)
	t.writes[string(key)] = writeOp{value: append([]byte(nil), value...)}
	return nil
}

// Delete buffers a tombstone for key, visible only to this transaction
// until commit.
func (t *Transaction) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return errs.BadState
	}
	t.touch(key)
	t.writes[string(key)] = writeOp{delete: true}
	return nil
}

// Commit validates every written key's recorded version against the
// engine's current version and, if none has moved, applies the whole write
// set atomically. A conflicting key aborts the entire commit with
// errs.CommitRetry and closes the transaction — per spec.md §4.2, the
// caller must open a fresh transaction and reapply.
func (t *Transaction) Commit() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return 0, errs.BadState
	}

	entries := make([]lsm.Entry, 0, len(t.writes))
	for k, w := range t.writes {
		if w.delete {
			entries = append(entries, lsm.Entry{Type: lsm.DeleteEntry, Key: []byte(k)})
		} else {
			entries = append(entries, lsm.Entry{Type: lsm.PutEntry, Key: []byte(k), Value: w.value})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return string(entries[i].Key) < string(entries[j].Key) })

	commitID, err := t.engine.CommitWriteSet(t.readVersions, entries)
	t.deregister(t.id)
	if err != nil {
		t.st = rolledBack
		return 0, err
	}
	t.st = committed
	return commitID, nil
}

// Rollback discards the transaction's buffered writes. Idempotent, and
// auto-invoked by Drop if the transaction was never committed.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return nil
	}
	t.st = rolledBack
	t.deregister(t.id)
	return nil
}

// Drop treats an abandoned transaction handle as a rollback, per spec.md
// §5's cancellation model.
func (t *Transaction) Drop() { _ = t.Rollback() }
