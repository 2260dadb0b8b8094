package record_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesseradb/tessera/internal/record"
)

func TestKeyRoundTrip(t *testing.T) {
	cases := []record.Key{
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("a")},
		{ChunkID: 3, DBID: 1, Type: record.HashMeta, PrimaryKey: []byte("users")},
		{ChunkID: 0, DBID: 0, Type: record.HashMeta, PrimaryKey: []byte("users"), SecondaryKey: []byte("field1")},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte{0x00, 'a', 0x00, 0x00, 'b'}},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: nil},
	}

	for _, k := range cases {
		encoded := record.EncodeKey(k)
		decoded, err := record.DecodeKey(encoded)
		require.NoError(t, err)
		assert.Equal(t, k.ChunkID, decoded.ChunkID)
		assert.Equal(t, k.DBID, decoded.DBID)
		assert.Equal(t, k.Type, decoded.Type)
		assert.True(t, bytes.Equal(k.PrimaryKey, decoded.PrimaryKey), "primary key mismatch")
		assert.True(t, bytes.Equal(k.SecondaryKey, decoded.SecondaryKey), "secondary key mismatch")
	}
}

func TestValueRoundTrip(t *testing.T) {
	cases := []record.Value{
		{Payload: []byte("hello"), TTLMillis: 0},
		{Payload: []byte("hello"), TTLMillis: 1_700_000_000_000},
		{Payload: nil, TTLMillis: 5},
		{Payload: []byte{}, TTLMillis: 0},
	}
	for _, v := range cases {
		decoded, err := record.DecodeValue(record.EncodeValue(v))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(v.Payload, decoded.Payload))
		assert.Equal(t, v.TTLMillis, decoded.TTLMillis)
	}
}

func TestValueSetTTLOnlyChangesTTL(t *testing.T) {
	v := record.Value{Payload: []byte("payload"), TTLMillis: 10}
	updated := v.SetTTL(99)
	assert.Equal(t, uint64(99), updated.TTLMillis)
	assert.True(t, bytes.Equal(v.Payload, updated.Payload))
}

// TestKeyOrderMatchesTupleOrder covers Testable Property 2: encoded byte
// order must equal (chunk, db, type, primary, secondary) tuple order.
func TestKeyOrderMatchesTupleOrder(t *testing.T) {
	keys := []record.Key{
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("a")},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("ab")},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("abc")},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("b")},
		{ChunkID: 0, DBID: 0, Type: record.KV, PrimaryKey: []byte("bac")},
	}
	encoded := make([][]byte, len(keys))
	for i, k := range keys {
		encoded[i] = record.EncodeKey(k)
	}

	shuffled := append([][]byte{}, encoded...)
	shuffled[0], shuffled[3] = shuffled[3], shuffled[0]
	sort.Slice(shuffled, func(i, j int) bool { return bytes.Compare(shuffled[i], shuffled[j]) < 0 })

	for i := range encoded {
		assert.True(t, bytes.Equal(encoded[i], shuffled[i]), "sorted order does not match tuple insertion order at %d", i)
	}
}

// TestKeyOrderAcrossZeroEscaping ensures a literal 0x00 byte in the primary
// key does not break ordering relative to keys without one (S1-adjacent
// edge case the escaping rule exists for).
func TestKeyOrderAcrossZeroEscaping(t *testing.T) {
	withZero := record.EncodeKey(record.Key{Type: record.KV, PrimaryKey: []byte{'a', 0x00}})
	plain := record.EncodeKey(record.Key{Type: record.KV, PrimaryKey: []byte("a")})
	withOne := record.EncodeKey(record.Key{Type: record.KV, PrimaryKey: []byte{'a', 0x01}})

	assert.True(t, bytes.Compare(plain, withZero) < 0, "\"a\" should sort before \"a\\x00\"")
	assert.True(t, bytes.Compare(withZero, withOne) < 0, "\"a\\x00\" should sort before \"a\\x01\"")
}

// TestPrefixOfCoversSubRecords covers Scenario S1's cursor-prefix behavior:
// prefixOf(primary) must be a byte-prefix of every record sharing that
// primary key, including sub-records with a non-empty secondary key.
func TestPrefixOfCoversSubRecords(t *testing.T) {
	prefix := record.PrefixOf(0, 0, record.HashMeta, []byte("users"))

	meta := record.EncodeKey(record.Key{Type: record.HashMeta, PrimaryKey: []byte("users")})
	field := record.EncodeKey(record.Key{Type: record.HashMeta, PrimaryKey: []byte("users"), SecondaryKey: []byte("field1")})
	other := record.EncodeKey(record.Key{Type: record.HashMeta, PrimaryKey: []byte("usersx")})

	assert.True(t, bytes.HasPrefix(meta, prefix))
	assert.True(t, bytes.HasPrefix(field, prefix))
	assert.False(t, bytes.HasPrefix(other, prefix))
}

func TestDecodeKeyRejectsTruncatedInput(t *testing.T) {
	_, err := record.DecodeKey([]byte{0x00, 0x01})
	assert.Error(t, err)
}
