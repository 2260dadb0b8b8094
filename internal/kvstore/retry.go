package kvstore

import "github.com/tesseradb/tessera/internal/errs"

// WithRetry factors out the "(open txn, do work, commit, classify,
// retry-on-CommitRetry)" shape spec.md §9 calls out as shared between the
// TTL rewrite path and lazy eviction. work runs against a fresh
// transaction on every attempt; if it returns an error the transaction is
// rolled back and the error propagates without retrying — only a
// CommitRetry from Commit() itself is retried, up to attempts times.
func WithRetry[T any](store *KVStore, attempts int, work func(tx *Transaction) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < attempts; i++ {
		tx, err := store.CreateTransaction()
		if err != nil {
			return zero, err
		}

		result, werr := work(tx)
		if werr != nil {
			tx.Drop()
			return zero, werr
		}

		_, cerr := tx.Commit()
		if cerr == nil {
			return result, nil
		}
		if !errs.Is(cerr, errs.CommitRetry) {
			return zero, cerr
		}
		lastErr = cerr
	}
	return zero, lastErr
}
