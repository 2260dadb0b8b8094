package lsm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
)

// TestCompactMergedSegmentSupportsNonSampledLookup covers the same sparse
// index off-by-one as the flush case, but against compact()'s merged
// output: several single-key segments (one per flush) merge into one
// larger segment, and every key must still resolve, not just the ones a
// sparse-index sample happens to land on.
func TestCompactMergedSegmentSupportsNonSampledLookup(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DBPath = dir
	cfg.MaxMemtableSize = 1 // flush after every commit, one segment per key
	cfg.MaxSegmentsPerRun = 1000
	cfg.IndexInterval = 2

	e, err := Open(diskmanager.New(), dir, cfg, nil)
	require.NoError(t, err)

	keys := []string{"a", "ab", "abc", "b", "bac"}
	for _, k := range keys {
		_, err := e.CommitWriteSet(nil, []Entry{{Type: PutEntry, Key: []byte(k), Value: []byte(k)}})
		require.NoError(t, err)
	}
	require.Len(t, e.segments, len(keys), "each commit should have flushed to its own segment")

	require.NoError(t, e.compact())
	require.Len(t, e.segments, 1, "compact should have merged every segment into one")

	for _, k := range keys {
		entry, ok, err := e.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "key %q should be found in the compacted segment", k)
		assert.Equal(t, k, string(entry.Value))
	}
}

// TestCompactDropsFullyShadowedKeysButKeepsLive covers compact() merging a
// mix of live writes and a tombstone spread across several source segments.
func TestCompactDropsFullyShadowedKeysButKeepsLive(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DBPath = dir
	cfg.MaxMemtableSize = 1
	cfg.MaxSegmentsPerRun = 1000
	cfg.IndexInterval = 4

	e, err := Open(diskmanager.New(), dir, cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := e.CommitWriteSet(nil, []Entry{{Type: PutEntry, Key: []byte(key), Value: []byte("v")}})
		require.NoError(t, err)
	}
	_, err = e.CommitWriteSet(nil, []Entry{{Type: DeleteEntry, Key: []byte("k2")}})
	require.NoError(t, err)

	require.NoError(t, e.compact())

	entries, err := e.Scan(nil)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	_, ok, err := e.Get([]byte("k2"))
	require.NoError(t, err)
	assert.False(t, ok)

	entry, ok, err := e.Get([]byte("k5"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(entry.Value))
}
