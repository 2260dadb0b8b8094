// Package keyops implements the multi-type key operations spec.md §4.5
// exposes to the command layer: EXPIRE/PEXPIRE/EXPIREAT/PEXPIREAT, TTL,
// PTTL, EXISTS and TYPE, each dispatching across the fixed five-type probe
// order (spec.md §4.4.4) and rendering RESP wire replies bit-exact to §6.
package keyops

import (
	"fmt"

	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/expire"
	"github.com/tesseradb/tessera/internal/record"
	"github.com/tesseradb/tessera/internal/session"
)

func respInt(n int64) string {
	return fmt.Sprintf(":%d\r\n", n)
}

func respBulk(s string) string {
	return fmt.Sprintf("$%d\r\n%s\r\n", len(s), s)
}

// applyDeadline runs the type-probe loop shared by every EXPIRE-family
// command: for each candidate type, delete the key if the new deadline has
// already passed, otherwise rewrite its TTL. Returns 1 if any probe
// actually changed something, 0 otherwise (spec.md §4.5).
func applyDeadline(sess *session.Session, userKey []byte, deadlineMillis int64) (int64, error) {
	var applied bool
	now := int64(expire.NowMillis())

	for _, typ := range record.ProbeOrder {
		var ok bool
		var err error
		if deadlineMillis < now {
			ok, err = expire.BeforeNow(sess, typ, userKey)
		} else {
			ok, err = expire.AfterNow(sess, typ, userKey, uint64(deadlineMillis))
		}
		if err != nil {
			return 0, err
		}
		if ok {
			applied = true
		}
	}
	if applied {
		return 1, nil
	}
	return 0, nil
}

// Expire implements `EXPIRE key seconds`.
func Expire(sess *session.Session, userKey []byte, seconds int64) (string, error) {
	deadline := int64(expire.NowMillis()) + seconds*1000
	n, err := applyDeadline(sess, userKey, deadline)
	if err != nil {
		return "", err
	}
	return respInt(n), nil
}

// PExpire implements `PEXPIRE key millis`.
func PExpire(sess *session.Session, userKey []byte, millis int64) (string, error) {
	deadline := int64(expire.NowMillis()) + millis
	n, err := applyDeadline(sess, userKey, deadline)
	if err != nil {
		return "", err
	}
	return respInt(n), nil
}

// ExpireAt implements `EXPIREAT key secondsSinceEpoch`.
func ExpireAt(sess *session.Session, userKey []byte, seconds int64) (string, error) {
	n, err := applyDeadline(sess, userKey, seconds*1000)
	if err != nil {
		return "", err
	}
	return respInt(n), nil
}

// PExpireAt implements `PEXPIREAT key millisSinceEpoch`.
func PExpireAt(sess *session.Session, userKey []byte, millis int64) (string, error) {
	n, err := applyDeadline(sess, userKey, millis)
	if err != nil {
		return "", err
	}
	return respInt(n), nil
}

// ttlRemainingMillis probes every type in order and returns the first live
// hit's remaining TTL in milliseconds, -1 if that hit has no TTL, or -2 if
// no live record exists under any type.
func ttlRemainingMillis(sess *session.Session, userKey []byte) (int64, error) {
	for _, typ := range record.ProbeOrder {
		val, err := expire.KeyIfNeeded(sess, userKey, typ)
		if errs.Is(err, errs.NotFound) || errs.Is(err, errs.Expired) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if val.TTLMillis == 0 {
			return -1, nil
		}
		remaining := int64(val.TTLMillis) - int64(expire.NowMillis())
		if remaining <= 0 {
			// The key just expired but hasn't been evicted by the next
			// read yet; report the smallest positive value rather than a
			// stale negative one (spec.md §4.5).
			return 1, nil
		}
		return remaining, nil
	}
	return -2, nil
}

// TTL implements `TTL key`, remaining time in whole seconds.
func TTL(sess *session.Session, userKey []byte) (string, error) {
	remaining, err := ttlRemainingMillis(sess, userKey)
	if err != nil {
		return "", err
	}
	if remaining < 0 {
		return respInt(remaining), nil
	}
	return respInt(remaining / 1000), nil
}

// PTTL implements `PTTL key`, remaining time in milliseconds.
func PTTL(sess *session.Session, userKey []byte) (string, error) {
	remaining, err := ttlRemainingMillis(sess, userKey)
	if err != nil {
		return "", err
	}
	return respInt(remaining), nil
}

// Exists implements `EXISTS key`.
func Exists(sess *session.Session, userKey []byte) (string, error) {
	for _, typ := range record.ProbeOrder {
		_, err := expire.KeyIfNeeded(sess, userKey, typ)
		if err == nil {
			return respInt(1), nil
		}
		if !errs.Is(err, errs.NotFound) && !errs.Is(err, errs.Expired) {
			return "", err
		}
	}
	return respInt(0), nil
}

// Type implements `TYPE key`.
func Type(sess *session.Session, userKey []byte) (string, error) {
	for _, typ := range record.ProbeOrder {
		_, err := expire.KeyIfNeeded(sess, userKey, typ)
		if err == nil {
			return respBulk(typ.String()), nil
		}
		if !errs.Is(err, errs.NotFound) && !errs.Is(err, errs.Expired) {
			return "", err
		}
	}
	return respBulk("none"), nil
}
