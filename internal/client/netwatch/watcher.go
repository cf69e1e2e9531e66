// Package netwatch tracks backend reachability. It periodically pings the
// remote store and reports offline/online transitions, standing in for the
// browser's connectivity events.
package netwatch

import (
	"context"
	"time"

	"github.com/serenityspace/healthkeeper/internal/logging"
)

const pingTimeout = 3 * time.Second

// Pinger is the liveness probe. Satisfied by the remote store adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher flips between online and offline based on ping results. OnChange
// runs on every transition, never on repeats.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	log      logging.Logger
	onChange func(ctx context.Context, online bool)

	online bool
}

// New builds a watcher that assumes it starts online. onChange may be nil.
func New(pinger Pinger, interval time.Duration, log logging.Logger, onChange func(ctx context.Context, online bool)) *Watcher {
	return &Watcher{
		pinger:   pinger,
		interval: interval,
		log:      log,
		onChange: onChange,
		online:   true,
	}
}

// Run probes until ctx is cancelled. Call it on its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := w.pinger.Ping(pingCtx)
	cancel()

	online := err == nil
	if online == w.online {
		return
	}
	w.online = online
	if online {
		w.log.Info(ctx, "connection restored")
	} else {
		w.log.Warn(ctx, "connection lost", "error", err)
	}
	if w.onChange != nil {
		w.onChange(ctx, online)
	}
}
