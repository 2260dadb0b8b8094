// Package tessera is the transactional key-space core: an embedded,
// order-preserving byte store with optimistic transactions, lazy TTL
// expiration and a small multi-typed record model, meant to sit under a
// Redis-protocol-compatible command layer.
//
// Most callers only need the simple Set/Get/Delete surface below, which
// runs each call in its own transaction (committed for Set and Delete,
// rolled back after the read for Get) against a single
// RT_KV-typed keyspace. Callers that need transactions, cursors, TTLs or
// multiple logical databases should reach for Store() and NewSession()
// directly and use internal/kvstore, internal/txn, internal/expire and
// internal/keyops.
//
// Example usage:
//
//	db, err := tessera.Open("/path/to/database", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Set([]byte("key"), []byte("value")); err != nil {
//		log.Printf("set failed: %v", err)
//	}
//
//	value, ok := db.Get([]byte("key"))
//	if ok {
//		fmt.Printf("value: %s\n", value)
//	}
package tessera

import (
	"go.uber.org/zap"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/expire"
	"github.com/tesseradb/tessera/internal/kvstore"
	"github.com/tesseradb/tessera/internal/record"
	"github.com/tesseradb/tessera/internal/session"
)

// Config is an alias for config.Config, re-exported for caller convenience.
type Config = config.Config

// DefaultConfig returns a Config populated with default values, re-exported
// for caller convenience.
var DefaultConfig = config.DefaultConfig

// DB is a single KVStore plus the segment manager and default database a
// simple, single-tenant caller needs.
type DB struct {
	store  *kvstore.KVStore
	segMgr *session.DefaultSegmentManager
	log    *zap.SugaredLogger
}

// Open opens or creates the store named "default" under path.
func Open(path string, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.DBPath = path
	cfg.FillDefaults()

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	sugar := logger.Sugar()

	dm := diskmanager.New()
	store, err := kvstore.Open(dm, cfg, sugar, "default")
	if err != nil {
		return nil, err
	}

	return &DB{
		store:  store,
		segMgr: session.NewDefaultSegmentManager(0, store),
		log:    sugar,
	}, nil
}

// Store exposes the underlying KVStore for callers that need transactions,
// cursors, backup/restart or non-string record types.
func (db *DB) Store() *kvstore.KVStore { return db.store }

// NewSession builds a Session bound to dbID against this DB's segment
// manager, ready to pass into internal/expire and internal/keyops.
func (db *DB) NewSession(dbID uint32) *session.Session {
	return &session.Session{
		DBID:   dbID,
		Server: &session.ServerEntry{SegmentMgr: db.segMgr},
	}
}

// Set writes a key-value pair, committed in its own transaction.
func (db *DB) Set(key, value []byte) error {
	tx, err := db.store.CreateTransaction()
	if err != nil {
		return err
	}
	if err := db.store.SetKV(kvKey(key), record.Value{Payload: value}, tx); err != nil {
		tx.Drop()
		return err
	}
	_, err = tx.Commit()
	return err
}

// Get retrieves the value for key. The second return value is false if the
// key is absent or expired.
func (db *DB) Get(key []byte) ([]byte, bool) {
	tx, err := db.store.CreateTransaction()
	if err != nil {
		return nil, false
	}
	defer tx.Drop()

	val, err := db.store.GetKV(kvKey(key), tx)
	if err != nil {
		return nil, false
	}
	if val.TTLMillis != 0 && val.TTLMillis <= expire.NowMillis() {
		return nil, false
	}
	return val.Payload, true
}

// Delete removes key, committed in its own transaction.
func (db *DB) Delete(key []byte) error {
	tx, err := db.store.CreateTransaction()
	if err != nil {
		return err
	}
	if err := db.store.DelKV(kvKey(key), tx); err != nil {
		tx.Drop()
		return err
	}
	_, err = tx.Commit()
	return err
}

// Close stops the underlying store, syncing and closing the engine's WAL and
// segment files.
func (db *DB) Close() error {
	_ = db.log.Sync()
	return db.store.Stop()
}

func kvKey(userKey []byte) record.Key {
	return record.Key{Type: record.KV, PrimaryKey: userKey}
}
