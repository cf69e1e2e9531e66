// Package cli is the terminal front end: a small REPL standing in for the
// application pages. It owns component wiring and implements the auth
// guard's navigator.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/serenityspace/healthkeeper/internal/client/cache"
	"github.com/serenityspace/healthkeeper/internal/client/config"
	"github.com/serenityspace/healthkeeper/internal/client/events"
	"github.com/serenityspace/healthkeeper/internal/client/guard"
	"github.com/serenityspace/healthkeeper/internal/client/models"
	"github.com/serenityspace/healthkeeper/internal/client/netwatch"
	"github.com/serenityspace/healthkeeper/internal/client/remote"
	"github.com/serenityspace/healthkeeper/internal/client/state"
	"github.com/serenityspace/healthkeeper/internal/logging"
)

// App wires the cache, the remote adapter, the synchronization core, the
// guard, and the watcher, and drives them from a REPL.
type App struct {
	config *config.Config
	svc    *state.Service
	store  remote.Store
	guard  *guard.Guard
	bus    *events.Bus
	log    logging.Logger
	reader *bufio.Reader
}

// NewApp constructs the full component graph. Construction happens once at
// startup; teardown happens on exit or sign-out.
func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := cache.InitDatabase(ctx, cfg.CacheDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	localCache := cache.NewSQLiteCache(db)

	store := remote.NewHTTPStore(remote.Options{
		BaseURL: cfg.ServerBaseURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  cache.NewTokenStore(localCache),
		Logger:  log,
	})

	bus := events.New()
	svc := state.New(state.Options{
		Cache:               localCache,
		Store:               store,
		Bus:                 bus,
		Logger:              log,
		SessionWaitAttempts: cfg.SessionWaitAttempts,
		SessionWaitDelay:    cfg.SessionWaitDelay,
	})

	app := &App{
		config: cfg,
		svc:    svc,
		store:  store,
		bus:    bus,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
	}
	app.guard = guard.New(store, localCache, app, log)

	store.OnSessionChange(func(sess *models.Session) {
		app.guard.HandleSessionChange(ctx, sess)
	})

	app.subscribeNotices()
	return app, nil
}

// Navigate renders the page the guard redirected to. It satisfies
// guard.Navigator; the guard has already recorded the page as current.
func (a *App) Navigate(p guard.Page) {
	a.renderPage(p)
}

// navigateTo is a view-initiated page change, recorded with the guard
// before rendering.
func (a *App) navigateTo(p guard.Page) {
	a.guard.SetPage(p)
	a.renderPage(p)
}

// Run initializes state, evaluates the guard for the entry page, starts the
// connectivity watcher, and enters the REPL.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	if err := a.svc.Initialize(ctx); err != nil {
		a.log.Warn(ctx, "state initialization incomplete", "error", err)
	}
	a.guard.CheckAuthOnPageLoad(ctx)

	watcher := netwatch.New(a.store, a.config.OnlineCheckInterval, a.log, func(ctx context.Context, online bool) {
		a.svc.SetOnline(online)
		if online {
			if err := a.svc.SyncOnReconnect(ctx); err != nil {
				a.log.Warn(ctx, "reconnect sync failed", "error", err)
			}
		}
	})
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Run(watchCtx)

	a.repl(ctx)
	return nil
}
