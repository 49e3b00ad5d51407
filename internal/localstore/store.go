// Package localstore provides a durable key-value handle scoped to one
// client/device: the whole value set is read at open and rewritten on every
// mutation, so callers can treat a key as a single mutable blob that
// survives process restarts.
package localstore

// Store is the persistence primitive the vote ledger is written to. It is
// deliberately narrow so the same ledger logic works against a file, an
// embedded store, or a platform preferences store.
type Store interface {
	// Get returns the stored value for key and whether it exists
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value
	Set(key string, value []byte) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error
}
