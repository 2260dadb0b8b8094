package expire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/expire"
	"github.com/tesseradb/tessera/internal/kvstore"
	"github.com/tesseradb/tessera/internal/record"
	"github.com/tesseradb/tessera/internal/session"
)

func newTestSession(t *testing.T) (*session.Session, *kvstore.KVStore) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DBPath = t.TempDir()
	dm := diskmanager.New()
	store, err := kvstore.Open(dm, cfg, nil, "store1")
	require.NoError(t, err)

	mgr := session.NewDefaultSegmentManager(0, store)
	sess := &session.Session{
		DBID:   0,
		Server: &session.ServerEntry{SegmentMgr: mgr},
	}
	return sess, store
}

func putKV(t *testing.T, store *kvstore.KVStore, key record.Key, val record.Value) {
	t.Helper()
	tx, err := store.CreateTransaction()
	require.NoError(t, err)
	require.NoError(t, store.SetKV(key, val, tx))
	_, err = tx.Commit()
	require.NoError(t, err)
}

// TestExpireInFuture covers Scenario S4.
func TestExpireInFuture(t *testing.T) {
	sess, store := newTestSession(t)
	key := record.Key{Type: record.KV, PrimaryKey: []byte("k")}
	putKV(t, store, key, record.Value{Payload: []byte("v")})

	deadline := expire.NowMillis() + 10000
	applied, err := expire.AfterNow(sess, record.KV, []byte("k"), deadline)
	require.NoError(t, err)
	assert.True(t, applied)

	val, err := expire.KeyIfNeeded(sess, []byte("k"), record.KV)
	require.NoError(t, err)
	assert.Equal(t, deadline, val.TTLMillis)
}

// TestExpireInPast covers Scenario S5.
func TestExpireInPast(t *testing.T) {
	sess, store := newTestSession(t)
	key := record.Key{Type: record.KV, PrimaryKey: []byte("k")}
	putKV(t, store, key, record.Value{Payload: []byte("v")})

	removed, err := expire.BeforeNow(sess, record.KV, []byte("k"))
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = expire.KeyIfNeeded(sess, []byte("k"), record.KV)
	assert.ErrorIs(t, err, errs.NotFound)
}

// TestLazyEvictionCompleteness covers Testable Property 5: after
// expireKeyIfNeeded reports Expired, every sub-record under that key is
// gone too.
func TestLazyEvictionCompleteness(t *testing.T) {
	sess, store := newTestSession(t)

	meta := record.Key{Type: record.HashMeta, PrimaryKey: []byte("h")}
	putKV(t, store, meta, record.Value{Payload: nil, TTLMillis: 1}) // already past due

	field := record.Key{Type: record.HashMeta, PrimaryKey: []byte("h"), SecondaryKey: []byte("f1")}
	putKV(t, store, field, record.Value{Payload: []byte("fv")})

	_, err := expire.KeyIfNeeded(sess, []byte("h"), record.HashMeta)
	assert.ErrorIs(t, err, errs.Expired)

	tx, err := store.CreateTransaction()
	require.NoError(t, err)
	_, err = store.GetKV(field, tx)
	assert.ErrorIs(t, err, errs.NotFound)
	tx.Drop()
}

func TestKeyIfNeededNotFound(t *testing.T) {
	sess, _ := newTestSession(t)
	_, err := expire.KeyIfNeeded(sess, []byte("missing"), record.KV)
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestExpireAfterNowOnMissingKeyReturnsFalse(t *testing.T) {
	sess, _ := newTestSession(t)
	applied, err := expire.AfterNow(sess, record.KV, []byte("missing"), 123)
	require.NoError(t, err)
	assert.False(t, applied)
}
