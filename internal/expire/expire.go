// Package expire implements the lazy key expiration protocol spec.md
// §4.4 describes: a read-path probe that evicts past-due keys on
// discovery, and the TTL-rewrite/deletion paths EXPIRE-family commands
// drive, all bounded by the same retry budget.
package expire

import (
	"bytes"

	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/kvstore"
	"github.com/tesseradb/tessera/internal/record"
	"github.com/tesseradb/tessera/internal/session"
)

// RetryCnt bounds both the lazy-eviction retry loop and the TTL-rewrite
// retry loop (spec.md §5 "Bounded retry").
const RetryCnt = 3

// KeyIfNeeded is the read-path probe (spec.md §4.4.1). It returns the live
// value, errs.NotFound if no record exists, or errs.Expired once a
// past-due key has been synchronously evicted.
func KeyIfNeeded(sess *session.Session, userKey []byte, typ record.Type) (record.Value, error) {
	chunkID, store, unlock, err := sess.Server.SegmentMgr.GetDBWithKeyLock(sess, userKey, session.LockShared)
	if err != nil {
		return record.Value{}, err
	}
	defer unlock()

	key := record.Key{ChunkID: chunkID, DBID: sess.DBID, Type: typ, PrimaryKey: userKey}

	probeTx, err := store.CreateTransaction()
	if err != nil {
		return record.Value{}, err
	}
	val, err := store.GetKV(key, probeTx)
	probeTx.Drop()
	if errs.Is(err, errs.NotFound) {
		return record.Value{}, errs.NotFound
	}
	if err != nil {
		return record.Value{}, err
	}

	if val.TTLMillis == 0 || val.TTLMillis > nowMillis() {
		return val, nil
	}

	_, err = kvstore.WithRetry(store, RetryCnt, func(tx *kvstore.Transaction) (struct{}, error) {
		return struct{}{}, evictSubtree(tx, chunkID, sess.DBID, typ, userKey)
	})
	if err != nil {
		return record.Value{}, err
	}
	return record.Value{}, errs.Expired
}

// AfterNow applies a future deadline to an existing key (spec.md §4.4.2).
func AfterNow(sess *session.Session, typ record.Type, userKey []byte, expireAtMillis uint64) (bool, error) {
	_, err := KeyIfNeeded(sess, userKey, typ)
	if errs.Is(err, errs.Expired) || errs.Is(err, errs.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	chunkID, store, unlock, err := sess.Server.SegmentMgr.GetDBWithKeyLock(sess, userKey, session.LockExclusive)
	if err != nil {
		return false, err
	}
	defer unlock()

	key := record.Key{ChunkID: chunkID, DBID: sess.DBID, Type: typ, PrimaryKey: userKey}

	applied, err := kvstore.WithRetry(store, RetryCnt, func(tx *kvstore.Transaction) (bool, error) {
		v, gerr := store.GetKV(key, tx)
		if errs.Is(gerr, errs.NotFound) {
			return false, nil // race with concurrent eviction: rewrite finds nothing to do
		}
		if gerr != nil {
			return false, gerr
		}
		if serr := store.SetKV(key, v.SetTTL(expireAtMillis), tx); serr != nil {
			return false, serr
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// BeforeNow deletes a key whose new deadline already lies in the past
// (spec.md §4.4.3), returning true iff a record was actually removed.
func BeforeNow(sess *session.Session, typ record.Type, userKey []byte) (bool, error) {
	chunkID, store, unlock, err := sess.Server.SegmentMgr.GetDBWithKeyLock(sess, userKey, session.LockExclusive)
	if err != nil {
		return false, err
	}
	defer unlock()

	removed, err := kvstore.WithRetry(store, RetryCnt, func(tx *kvstore.Transaction) (bool, error) {
		before := 0
		err := forEachSubrecord(tx, chunkID, sess.DBID, typ, userKey, func([]byte) { before++ })
		if err != nil {
			return false, err
		}
		if before == 0 {
			return false, nil
		}
		return true, evictSubtree(tx, chunkID, sess.DBID, typ, userKey)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// evictSubtree deletes the meta/KV record for userKey and every subordinate
// record sharing its (chunk, db, type, primary) prefix, within tx.
func evictSubtree(tx *kvstore.Transaction, chunkID, dbID uint32, typ record.Type, userKey []byte) error {
	return forEachSubrecord(tx, chunkID, dbID, typ, userKey, func(encodedKey []byte) {
		_ = tx.Delete(encodedKey)
	})
}

func forEachSubrecord(tx *kvstore.Transaction, chunkID, dbID uint32, typ record.Type, userKey []byte, visit func(encodedKey []byte)) error {
	prefix := record.PrefixOf(chunkID, dbID, typ, userKey)

	cur, err := tx.CreateCursor()
	if err != nil {
		return err
	}
	cur.Seek(prefix)
	for {
		k, _, err := cur.Next()
		if errs.Is(err, errs.Exhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		if !bytes.HasPrefix(k, prefix) {
			return nil
		}
		visit(k)
	}
}
