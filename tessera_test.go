package tessera_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tessera "github.com/tesseradb/tessera"
)

func TestSetGetDelete(t *testing.T) {
	db, err := tessera.Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set([]byte("key"), []byte("value")))

	val, ok := db.Get([]byte("key"))
	require.True(t, ok)
	assert.Equal(t, "value", string(val))

	require.NoError(t, db.Delete([]byte("key")))
	_, ok = db.Get([]byte("key"))
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	db, err := tessera.Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	_, ok := db.Get([]byte("missing"))
	assert.False(t, ok)
}

func TestNewSessionHasSegmentManager(t *testing.T) {
	db, err := tessera.Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Set([]byte("k"), []byte("v")))
	sess := db.NewSession(0)
	assert.NotNil(t, sess.Server.SegmentMgr)
}
