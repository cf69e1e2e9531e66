package remote

import "errors"

// Closed error taxonomy for the remote service. Callers match with
// errors.Is; anything else from this package wraps one of these or is a
// transport-level failure.
var (
	// Auth errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountExists      = errors.New("account already exists")
	ErrWeakPassword       = errors.New("password is too weak")

	// Store errors.
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDocumentMissing    = errors.New("user document missing")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Shared: the service could not be reached at all.
	ErrNetworkUnreachable = errors.New("network unreachable")
)
