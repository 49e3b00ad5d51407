// Package identity assigns each client installation a stable anonymous ID.
// The ID is observational only (log correlation); it is never used to
// enforce voting limits server-side.
package identity

import (
	"github.com/google/uuid"

	"karaoke-client/internal/localstore"
)

// StorageKey is the local store key holding the client ID
const StorageKey = "client_id"

// ClientID returns this client's anonymous identifier, generating and
// persisting one on first use. Storage failures fall back to a fresh ID for
// this run only.
func ClientID(store localstore.Store) string {
	raw, ok, err := store.Get(StorageKey)
	if err == nil && ok {
		if id, parseErr := uuid.ParseBytes(raw); parseErr == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	_ = store.Set(StorageKey, []byte(id))
	return id
}
