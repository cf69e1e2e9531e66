// Package cache implements the Local Cache: a synchronous key-value store
// persisted on the device. It holds serialized snapshots of the user profile
// and the three record collections so pages can render immediately after a
// restart, before the remote store is reachable.
package cache

import "context"

// Keys used by the synchronization layer. Values are JSON-serialized where
// structured.
const (
	KeyLoggedIn     = "userLoggedIn"
	KeyEmail        = "userEmail"
	KeyName         = "userName"
	KeyProfile      = "userProfile"
	KeyMedications  = "medications"
	KeyAppointments = "appointments"
	KeyVitals       = "vitals"
	KeyUserID       = "currentUserId"
	KeyAuthToken    = "authToken"
)

// Keys lists every key the application owns, in no particular order.
// Sign-out removes exactly this set.
var Keys = []string{
	KeyLoggedIn,
	KeyEmail,
	KeyName,
	KeyProfile,
	KeyMedications,
	KeyAppointments,
	KeyVitals,
	KeyUserID,
	KeyAuthToken,
}

// Cache is the Local Cache contract.
//
// Get returns ("", nil) for an absent key; callers that cannot distinguish
// absent from empty must treat "" as absent. Readers are expected to recover
// from any error by falling back to a default value; a cache problem must
// never fail a user-facing operation.
// SetMany writes several keys atomically, so a half-written snapshot can
// never be observed after a crash.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
