package object

import "context"

// KV is one live key/value pair returned by Backend.Scan.
type KV struct {
	Key   []byte
	Value []byte
}

// Backend is a multi-version key-value store.
//
// Every write is tagged with a transaction id. A read at id N observes,
// for each key, the newest version whose tag is <= N; a tombstone hides
// the key. Writing the same key twice at the same id replaces the first
// version.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value of key visible at at.
	// Returns ErrKeyNotFound if the key is absent or deleted.
	Get(ctx context.Context, key []byte, at TxID) ([]byte, error)

	// Put writes a version of key tagged at.
	Put(ctx context.Context, key, value []byte, at TxID) error

	// Delete writes a tombstone for key tagged at.
	Delete(ctx context.Context, key []byte, at TxID) error

	// Scan returns every live key with the given prefix visible at at,
	// in ascending key order.
	Scan(ctx context.Context, prefix []byte, at TxID) ([]KV, error)

	// Close releases backend resources.
	Close() error
}
