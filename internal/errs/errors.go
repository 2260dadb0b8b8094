// Package errs defines the taxonomic error kinds shared across the
// transactional key-space core. Every kind is a sentinel value so callers
// can classify outcomes with errors.Is instead of type-switching, and
// context can be layered on with Wrap/Wrapf without losing that identity.
package errs

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// NotFound means the key is absent. Not an error to the client.
	NotFound = stderrors.New("tessera: not found")
	// Expired means the key was present but past its TTL at probe time.
	// Callers treat it the same as NotFound.
	Expired = stderrors.New("tessera: expired")
	// CommitRetry means an optimistic conflict was detected at commit time.
	CommitRetry = stderrors.New("tessera: commit retry")
	// Busy means a key lock could not be acquired.
	Busy = stderrors.New("tessera: busy")
	// BackupInProgress means a backup is already in flight for this store.
	BackupInProgress = stderrors.New("tessera: backup in progress")
	// BadState means a lifecycle operation was attempted from the wrong
	// KVStore state (e.g. stop() with live transactions).
	BadState = stderrors.New("tessera: bad state")
	// Internal means an unreachable branch or codec failure was hit.
	Internal = stderrors.New("tessera: internal error")
	// Exhausted means a cursor has no more entries to yield.
	Exhausted = stderrors.New("tessera: cursor exhausted")
)

// Is reports whether err (or anything it wraps) is the given sentinel kind.
func Is(err, kind error) bool {
	return stderrors.Is(err, kind)
}

// Wrap attaches a message to err while preserving errors.Is matching against
// any sentinel kind err wraps.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with fmt-style formatting.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
