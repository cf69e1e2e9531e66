// Package guard gates page access on authentication state. It evaluates
// session state against the current page's classification once per page load
// and again on every session change, and asks the navigator to redirect when
// the combination calls for it.
package guard

import (
	"context"
	"sync"

	"github.com/serenityspace/healthkeeper/internal/client/cache"
	"github.com/serenityspace/healthkeeper/internal/client/models"
	"github.com/serenityspace/healthkeeper/internal/logging"
)

// Page is a logical page of the application.
type Page string

const (
	PageIndex        Page = "index"
	PageLogin        Page = "login"
	PageSignup       Page = "signup"
	PageDashboard    Page = "dashboard"
	PageMedications  Page = "medications"
	PageAppointments Page = "appointments"
	PageVitals       Page = "vitals"
	PageProfile      Page = "profile"
	PageHelp         Page = "help"
)

// Class is a page's access classification.
type Class int

const (
	// ClassProtected pages require an authenticated user.
	ClassProtected Class = iota
	// ClassPublicEntry is the landing page that only dispatches elsewhere.
	ClassPublicEntry
	// ClassPublicAuth pages host the login/signup forms.
	ClassPublicAuth
)

// Class reports the page's classification. Unknown pages are protected,
// the safe default.
func (p Page) Class() Class {
	switch p {
	case PageIndex:
		return ClassPublicEntry
	case PageLogin, PageSignup:
		return ClassPublicAuth
	default:
		return ClassProtected
	}
}

// SessionSource exposes the live remote session. Satisfied by the remote
// store adapter.
type SessionSource interface {
	Session() *models.Session
}

// Navigator performs redirects. Satisfied by the view layer.
type Navigator interface {
	Navigate(Page)
}

// Guard owns the current page and decides redirects. It prefers the live
// adapter session and falls back to Local Cache flags so an already
// logged-in user keeps access while offline.
type Guard struct {
	sessions SessionSource
	cache    cache.Cache
	nav      Navigator
	log      logging.Logger

	mu      sync.Mutex
	current Page
}

func New(sessions SessionSource, c cache.Cache, nav Navigator, log logging.Logger) *Guard {
	return &Guard{sessions: sessions, cache: c, nav: nav, log: log, current: PageIndex}
}

// SetPage records a navigation initiated by the view layer itself.
func (g *Guard) SetPage(p Page) {
	g.mu.Lock()
	g.current = p
	g.mu.Unlock()
}

// Current returns the page being viewed.
func (g *Guard) Current() Page {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// IsAuthenticated checks the adapter session first, then the cache flags.
// Cache read failures count as unauthenticated.
func (g *Guard) IsAuthenticated(ctx context.Context) bool {
	if g.sessions != nil && g.sessions.Session() != nil {
		return true
	}
	loggedIn, err := g.cache.Get(ctx, cache.KeyLoggedIn)
	if err != nil {
		return false
	}
	email, err := g.cache.Get(ctx, cache.KeyEmail)
	if err != nil {
		return false
	}
	return loggedIn == "true" && email != ""
}

// CheckAuthOnPageLoad evaluates the transition rules for the current page
// and redirects at most once. Repeated calls never loop: once the redirect
// lands, the current page satisfies its own rule and the check is a no-op.
func (g *Guard) CheckAuthOnPageLoad(ctx context.Context) {
	isAuth := g.IsAuthenticated(ctx)
	current := g.Current()
	g.log.Info(ctx, "auth guard check", "page", current, "authenticated", isAuth)

	switch current.Class() {
	case ClassProtected:
		if !isAuth {
			g.redirect(PageLogin)
		}
	case ClassPublicAuth:
		if isAuth {
			g.redirect(PageDashboard)
		}
	case ClassPublicEntry:
		if isAuth {
			g.redirect(PageDashboard)
		} else {
			g.redirect(PageLogin)
		}
	}
}

// HandleSessionChange re-evaluates the current page when the session flips:
// signing in moves off the auth forms, signing out moves off protected
// pages.
func (g *Guard) HandleSessionChange(ctx context.Context, sess *models.Session) {
	if sess != nil {
		if g.Current().Class() == ClassPublicAuth {
			g.redirect(PageDashboard)
		}
		return
	}
	if g.Current().Class() == ClassProtected {
		g.redirect(PageLogin)
	}
}

// RequireAuth is the manual check for views: true when authenticated,
// otherwise redirects to login and returns false.
func (g *Guard) RequireAuth(ctx context.Context) bool {
	if g.IsAuthenticated(ctx) {
		return true
	}
	g.redirect(PageLogin)
	return false
}

// redirect moves to the target page unless it is already being viewed.
func (g *Guard) redirect(to Page) {
	g.mu.Lock()
	if g.current == to {
		g.mu.Unlock()
		return
	}
	g.current = to
	g.mu.Unlock()
	g.nav.Navigate(to)
}
