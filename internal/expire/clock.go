package expire

import "time"

// nowMillis is the wall-clock reference the TTL comparisons in this
// package use. It is a plain function over time.Now, so tests cannot
// substitute a deterministic clock for it.
func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// NowMillis exposes the same wall-clock reference to internal/keyops,
// which needs it to compute TTL/PTTL's remaining-time replies.
func NowMillis() uint64 {
	return nowMillis()
}
