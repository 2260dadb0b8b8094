package lsm

import (
	"encoding/binary"

	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
)

// entryPrefixSize is the fixed header before a variable-length key/value:
// 1 byte type + 4 bytes key length + 4 bytes value length.
const entryPrefixSize = 1 + 4 + 4

// writeEntryWithPrefix writes [type][keyLen][valueLen][key][value] at
// offset and returns the offset immediately after the written bytes.
func writeEntryWithPrefix(f diskmanager.FileHandle, offset int64, e Entry) (int64, error) {
	keyLen := len(e.Key)
	valLen := len(e.Value)

	buf := make([]byte, entryPrefixSize+keyLen+valLen)
	buf[0] = byte(e.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(keyLen))
	binary.BigEndian.PutUint32(buf[5:9], uint32(valLen))
	copy(buf[9:], e.Key)
	copy(buf[9+keyLen:], e.Value)

	n, err := f.WriteAt(buf, offset)
	if err != nil {
		return 0, errs.Wrap(err, "lsm: write entry")
	}
	return offset + int64(n), nil
}

// readEntryWithPrefix reads one entry starting at offset and returns the
// offset immediately following it.
func readEntryWithPrefix(f diskmanager.FileHandle, offset int64) (Entry, int64, error) {
	header := make([]byte, entryPrefixSize)
	if _, err := f.ReadAt(header, offset); err != nil {
		return Entry{}, 0, err
	}

	typ := EntryType(header[0])
	keyLen := binary.BigEndian.Uint32(header[1:5])
	valLen := binary.BigEndian.Uint32(header[5:9])

	key := make([]byte, keyLen)
	if keyLen > 0 {
		if _, err := f.ReadAt(key, offset+entryPrefixSize); err != nil {
			return Entry{}, 0, errs.Wrap(err, "lsm: read key")
		}
	}
	val := make([]byte, valLen)
	if valLen > 0 {
		if _, err := f.ReadAt(val, offset+entryPrefixSize+int64(keyLen)); err != nil {
			return Entry{}, 0, errs.Wrap(err, "lsm: read value")
		}
	}

	newOffset := offset + entryPrefixSize + int64(keyLen) + int64(valLen)
	return Entry{Type: typ, Key: key, Value: val}, newOffset, nil
}

// compareKeys compares two byte strings lexicographically.
func compareKeys(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
