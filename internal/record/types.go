// Package record implements the encoded key/value model the transactional
// core stores in the embedded engine: a fixed-width, order-preserving key
// tuple and a payload+TTL value, following the same length-prefixed
// binary-layout style the teacher engine used for its own on-disk formats.
package record

// Type is the closed enumeration of record kinds. Tag bytes are part of the
// on-disk format and must stay stable across restarts.
type Type byte

const (
	// KV is a scalar string value.
	KV Type = 0x01
	// ListMeta is the header record for a list container.
	ListMeta Type = 0x02
	// HashMeta is the header record for a hash container.
	HashMeta Type = 0x03
	// SetMeta is the header record for a set container.
	SetMeta Type = 0x04
	// ZSetMeta is the header record for a sorted-set container.
	ZSetMeta Type = 0x05
)

// String names the type the way TYPE reports it, "none" for anything unmapped.
func (t Type) String() string {
	switch t {
	case KV:
		return "string"
	case ListMeta:
		return "list"
	case HashMeta:
		return "hash"
	case SetMeta:
		return "set"
	case ZSetMeta:
		return "zset"
	default:
		return "none"
	}
}

// ProbeOrder is the fixed dispatch order multi-type operations (EXPIRE, TTL,
// EXISTS, TYPE) use when a user key's type is not already known.
var ProbeOrder = [5]Type{KV, ListMeta, HashMeta, SetMeta, ZSetMeta}

// Key is the logical tuple identifying a record: a hash-partitioning chunk,
// a logical database, the record's type, and a primary/secondary key pair.
// secondaryKey is empty for RT_KV and meta records; composite element
// records (e.g. a hash field) set it to the field name.
type Key struct {
	ChunkID      uint32
	DBID         uint32
	Type         Type
	PrimaryKey   []byte
	SecondaryKey []byte
}

// Value is the payload stored under a Key, plus its expiration deadline.
// TTLMillis == 0 means no expiration; otherwise it is an absolute
// wall-clock deadline in milliseconds since the Unix epoch.
type Value struct {
	Payload   []byte
	TTLMillis uint64
}

// SetTTL returns a copy of v with only the TTL field changed.
func (v Value) SetTTL(ttlMillis uint64) Value {
	v.TTLMillis = ttlMillis
	return v
}
