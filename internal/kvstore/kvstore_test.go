package kvstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/kvstore"
	"github.com/tesseradb/tessera/internal/record"
)

func newTestStore(t *testing.T) *kvstore.KVStore {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DBPath = t.TempDir()
	dm := diskmanager.New()
	store, err := kvstore.Open(dm, cfg, nil, "store1")
	require.NoError(t, err)
	return store
}

func kvKey(primary string) record.Key {
	return record.Key{Type: record.KV, PrimaryKey: []byte(primary)}
}

// TestStopFailsWithLiveTransaction covers Testable Property 6.
func TestStopFailsWithLiveTransaction(t *testing.T) {
	store := newTestStore(t)
	tx, err := store.CreateTransaction()
	require.NoError(t, err)

	err = store.Stop()
	assert.ErrorIs(t, err, errs.BadState)

	_, err = tx.Commit()
	require.NoError(t, err)

	require.NoError(t, store.Stop())
}

// TestBackupProducesNonEmptyFileList exercises a single backup() call end
// to end. Concurrent-backup exclusivity (Testable Property 7) is covered
// by TestBackupExclusivity in backup_test.go, which needs direct access to
// the unexported in-flight flag to force the second call's error path.
func TestBackupProducesNonEmptyFileList(t *testing.T) {
	store := newTestStore(t)
	tx, err := store.CreateTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Set(record.EncodeKey(kvKey("a")), record.EncodeValue(record.Value{Payload: []byte("txn1")})))
	_, err = tx.Commit()
	require.NoError(t, err)

	info, err := store.Backup()
	require.NoError(t, err)
	assert.NotEmpty(t, info.FileList)
}

// TestBackupRestartCycle covers Scenario S3.
func TestBackupRestartCycle(t *testing.T) {
	store := newTestStore(t)

	tx, err := store.CreateTransaction()
	require.NoError(t, err)
	require.NoError(t, store.SetKV(kvKey("a"), record.Value{Payload: []byte("txn1")}, tx))
	_, err = tx.Commit()
	require.NoError(t, err)

	_, err = store.Backup()
	require.NoError(t, err)

	require.NoError(t, store.Stop())
	require.NoError(t, store.Clear())
	require.NoError(t, store.Restart(true))

	tx2, err := store.CreateTransaction()
	require.NoError(t, err)
	val, err := store.GetKV(kvKey("a"), tx2)
	require.NoError(t, err)
	assert.Equal(t, "txn1", string(val.Payload))
	_, err = tx2.Commit()
	require.NoError(t, err)
}

func TestOperationsFailOutsideRunning(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Stop())

	_, err := store.CreateTransaction()
	assert.ErrorIs(t, err, errs.BadState)

	err = store.Restart(false)
	require.NoError(t, err)
}

func TestUncommittedTxnsTracksLifecycle(t *testing.T) {
	store := newTestStore(t)
	assert.Empty(t, store.UncommittedTxns())

	tx, err := store.CreateTransaction()
	require.NoError(t, err)
	assert.Len(t, store.UncommittedTxns(), 1)

	require.NoError(t, tx.Rollback())
	assert.Empty(t, store.UncommittedTxns())
}
