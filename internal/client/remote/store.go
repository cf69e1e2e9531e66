// Package remote implements the Remote Store Adapter: a thin client for the
// external authentication and per-user document service. The backend is
// opaque; this package only knows its HTTP surface and translates its
// failures into a small closed error taxonomy.
package remote

import (
	"context"

	"github.com/serenityspace/healthkeeper/internal/client/models"
)

// Top-level document fields accepted by SaveField.
const (
	FieldProfile      = "profile"
	FieldMedications  = "medications"
	FieldAppointments = "appointments"
	FieldVitals       = "vitals"
)

// Store is the adapter contract consumed by the synchronization core and
// the auth guard.
//
//   - SignIn authenticates; it does not load any data.
//   - LoadUserDocument self-heals: a missing document for an authenticated
//     user is recreated with defaults before being returned.
//   - SaveField merge-writes a single top-level field without disturbing
//     siblings.
//   - Session returns the live session, or nil when signed out.
//   - Ready is closed once the adapter has finished restoring a previous
//     session (successfully or not); it bounds the startup wait.
//   - OnSessionChange registers a callback fired on every authentication
//     state transition, with the new session or nil on sign-out.
type Store interface {
	SignUp(ctx context.Context, email, password string, profile models.Profile) (*models.Session, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	LoadUserDocument(ctx context.Context, userID string) (*models.UserDocument, error)
	SaveField(ctx context.Context, userID, field string, value any) error
	Ping(ctx context.Context) error
	Session() *models.Session
	Ready() <-chan struct{}
	OnSessionChange(fn func(*models.Session))
	Close() error
}

// TokenStore persists the access token between runs so a signed-in user
// stays signed in across restarts. Implementations back it with the Local
// Cache.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
