package kvstore

import "github.com/tesseradb/tessera/internal/txn"

// Transaction is a KVStore-scoped handle around internal/txn.Transaction.
// It exists so KVStore's factory methods can return a type that belongs to
// this package's API surface while delegating every operation to txn.
type Transaction struct {
	*txn.Transaction
}
