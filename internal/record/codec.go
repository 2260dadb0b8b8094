package record

import (
	"encoding/binary"

	"github.com/tesseradb/tessera/internal/errs"
)

const (
	chunkWidth = 4
	dbWidth    = 4
	typeWidth  = 1
)

// escByte is appended after every literal 0x00 in primaryKey to keep the
// primary-key field's own 0x00 0x00 terminator unambiguous: a lone 0x00
// always means "primary key ends here", so a literal 0x00 in user bytes is
// rewritten to 0x00 0x01 before encoding and reversed on decode. This is
// the standard escaping trick for order-preserving key encoders — it keeps
// EncodeKey's lexicographic order equal to tuple order (spec.md §4.1)
// even when caller-supplied bytes contain the separator.
const escByte = 0x01

// EncodeKey renders k as a byte string whose lexicographic order matches
// (ChunkID, DBID, Type, PrimaryKey, SecondaryKey) under Go's natural tuple
// order. secondaryKey needs no escaping: it is the last field, so nothing
// after it depends on knowing where it ends.
func EncodeKey(k Key) []byte {
	escaped := escapePrimary(k.PrimaryKey)

	out := make([]byte, 0, chunkWidth+dbWidth+typeWidth+len(escaped)+2+len(k.SecondaryKey))
	var u32 [4]byte

	binary.BigEndian.PutUint32(u32[:], k.ChunkID)
	out = append(out, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], k.DBID)
	out = append(out, u32[:]...)
	out = append(out, byte(k.Type))
	out = append(out, escaped...)
	out = append(out, 0x00, 0x00) // primary-key terminator
	out = append(out, k.SecondaryKey...)
	return out
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(buf []byte) (Key, error) {
	if len(buf) < chunkWidth+dbWidth+typeWidth+2 {
		return Key{}, errs.Wrap(errs.Internal, "record: key too short")
	}
	chunkID := binary.BigEndian.Uint32(buf[0:4])
	dbID := binary.BigEndian.Uint32(buf[4:8])
	typ := Type(buf[8])
	rest := buf[9:]

	primary, secondary, err := splitPrimary(rest)
	if err != nil {
		return Key{}, err
	}
	return Key{
		ChunkID:      chunkID,
		DBID:         dbID,
		Type:         typ,
		PrimaryKey:   unescapePrimary(primary),
		SecondaryKey: secondary,
	}, nil
}

// PrefixOf produces the byte range prefix covering every record (meta and
// sub-records) sharing (chunk, db, type, primary) — what a cursor seeks to
// enumerate a composite container or to prefix-scan a user key's
// subordinate records during eviction.
func PrefixOf(chunkID, dbID uint32, typ Type, primaryKey []byte) []byte {
	escaped := escapePrimary(primaryKey)
	out := make([]byte, 0, chunkWidth+dbWidth+typeWidth+len(escaped)+2)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], chunkID)
	out = append(out, u32[:]...)
	binary.BigEndian.PutUint32(u32[:], dbID)
	out = append(out, u32[:]...)
	out = append(out, byte(typ))
	out = append(out, escaped...)
	out = append(out, 0x00, 0x00)
	return out
}

func escapePrimary(primary []byte) []byte {
	out := make([]byte, 0, len(primary))
	for _, b := range primary {
		if b == 0x00 {
			out = append(out, 0x00, escByte)
			continue
		}
		out = append(out, b)
	}
	return out
}

func unescapePrimary(escaped []byte) []byte {
	out := make([]byte, 0, len(escaped))
	for i := 0; i < len(escaped); i++ {
		if escaped[i] == 0x00 && i+1 < len(escaped) && escaped[i+1] == escByte {
			out = append(out, 0x00)
			i++
			continue
		}
		out = append(out, escaped[i])
	}
	return out
}

// splitPrimary scans an escaped primary key for its unescaped 0x00 0x00
// terminator (a 0x00 not immediately followed by escByte), returning the
// still-escaped primary segment and the raw secondary segment.
func splitPrimary(buf []byte) (primary, secondary []byte, err error) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0x00 {
			continue
		}
		if i+1 < len(buf) && buf[i+1] == escByte {
			i++ // escaped literal zero, skip past it
			continue
		}
		// unescaped 0x00 must be followed by the terminator's own 0x00.
		if i+1 >= len(buf) || buf[i+1] != 0x00 {
			return nil, nil, errs.Wrap(errs.Internal, "record: malformed primary-key terminator")
		}
		return buf[:i], buf[i+2:], nil
	}
	return nil, nil, errs.Wrap(errs.Internal, "record: primary-key terminator not found")
}
