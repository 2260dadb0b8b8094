package record

import (
	"encoding/binary"

	"github.com/tesseradb/tessera/internal/errs"
)

const ttlWidth = 8

// EncodeValue renders v as [8 bytes ttlMillis][payload].
func EncodeValue(v Value) []byte {
	out := make([]byte, ttlWidth+len(v.Payload))
	binary.BigEndian.PutUint64(out[:ttlWidth], v.TTLMillis)
	copy(out[ttlWidth:], v.Payload)
	return out
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(buf []byte) (Value, error) {
	if len(buf) < ttlWidth {
		return Value{}, errs.Wrap(errs.Internal, "record: value too short")
	}
	ttl := binary.BigEndian.Uint64(buf[:ttlWidth])
	payload := make([]byte, len(buf)-ttlWidth)
	copy(payload, buf[ttlWidth:])
	return Value{Payload: payload, TTLMillis: ttl}, nil
}
