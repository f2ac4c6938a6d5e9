package metadata

import "errors"

// ErrKeyExists is returned by PutNew when a record already exists under
// the given id. Callers treat this as success, not failure: insert-only
// semantics mean a collision is evidence the record was already
// derived, never a data error.
var ErrKeyExists = errors.New("metadata: key already exists")

// ErrKeyNotFound is returned by Get when no record exists under the
// given id.
var ErrKeyNotFound = errors.New("metadata: key not found")

// Store is the append-only metadata KV contract. Implementations must
// be safe for concurrent use by a single logical writer and many
// readers.
type Store interface {
	// PutNew writes value under key only if key is absent. It returns
	// ErrKeyExists (not a failure) if the key is already populated.
	PutNew(key string, value []byte) error

	// PutReplace writes value under key unconditionally. Reserved for
	// checkpoint records, the one record kind allowed to be overwritten
	// in place.
	PutReplace(key string, value []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Keys returns every key with the given prefix, ASCII-sorted. Used
	// by the idle processor to enumerate evidence ids deterministically;
	// callers must not rely on this being cheap for very large stores.
	Keys(prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
