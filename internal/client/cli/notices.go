package cli

import (
	"errors"
	"fmt"

	"github.com/serenityspace/healthkeeper/internal/client/events"
	"github.com/serenityspace/healthkeeper/internal/client/remote"
	"github.com/serenityspace/healthkeeper/internal/client/state"
)

// humanize maps taxonomy errors onto the fixed user-facing message table.
func humanize(err error) string {
	switch {
	case errors.Is(err, remote.ErrInvalidCredentials):
		return "Incorrect email or password. Please try again."
	case errors.Is(err, remote.ErrAccountExists):
		return "An account with this email already exists."
	case errors.Is(err, remote.ErrWeakPassword):
		return "Password should be at least 6 characters long."
	case errors.Is(err, remote.ErrPermissionDenied):
		return "You do not have permission to perform this action."
	case errors.Is(err, remote.ErrServiceUnavailable):
		return "Service temporarily unavailable. Please try again later."
	case errors.Is(err, remote.ErrNetworkUnreachable), errors.Is(err, state.ErrOffline):
		return "Network error. Please check your connection."
	default:
		return "An error occurred. Please try again."
	}
}

// subscribeNotices prints non-blocking notices and keeps collection views
// fresh when data changes underneath them.
func (a *App) subscribeNotices() {
	a.bus.Subscribe(events.TopicNotice, func(ev events.Event) {
		if n, ok := ev.Payload.(events.Notice); ok {
			fmt.Printf("[%s] %s\n", n.Kind, n.Message)
		}
	})
	a.bus.Subscribe(events.TopicUserSignedOut, func(events.Event) {
		fmt.Println("Session ended.")
	})
}
