package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"github.com/serenityspace/healthkeeper/internal/client/models"
	"github.com/serenityspace/healthkeeper/internal/logging"
)

// HTTPStore talks to the backend over HTTP JSON with bearer-token auth.
type HTTPStore struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenStore
	log     logging.Logger

	mu        sync.RWMutex
	token     string
	session   *models.Session
	listeners []func(*models.Session)

	ready     chan struct{}
	readyOnce sync.Once
	cancel    context.CancelFunc
}

// Options configures NewHTTPStore. Tokens may be nil, in which case the
// session does not survive restarts.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenStore
	Logger  logging.Logger
}

// NewHTTPStore builds the adapter and starts restoring a previously stored
// session in the background. Ready() is closed when that attempt finishes.
func NewHTTPStore(opts Options) *HTTPStore {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	s := &HTTPStore{
		baseURL: opts.BaseURL,
		httpc:   &http.Client{Timeout: timeout},
		tokens:  opts.Tokens,
		log:     opts.Logger,
		ready:   make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.restoreSession(ctx)
	return s
}

func (s *HTTPStore) Ready() <-chan struct{} { return s.ready }

func (s *HTTPStore) signalReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Session returns the live session, or nil when signed out.
func (s *HTTPStore) Session() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// OnSessionChange registers fn to run on every signed-in/signed-out
// transition. Callbacks run synchronously on the goroutine that caused the
// transition.
func (s *HTTPStore) OnSessionChange(fn func(*models.Session)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *HTTPStore) setSession(sess *models.Session, token string) {
	s.mu.Lock()
	s.session = sess
	s.token = token
	listeners := make([]func(*models.Session), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}

func (s *HTTPStore) bearer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// restoreSession validates a token left over from a previous run. Transient
// backend failures are retried a few times with a constant delay so the
// total startup wait stays bounded.
func (s *HTTPStore) restoreSession(ctx context.Context) {
	defer s.signalReady()

	if s.tokens == nil {
		return
	}
	token, err := s.tokens.Load(ctx)
	if err != nil || token == "" {
		return
	}
	if tokenExpired(token) {
		_ = s.tokens.Clear(ctx)
		return
	}

	var out sessionResponse
	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.doJSON(ctx, http.MethodGet, "/v1/auth/session", nil, &out, token)
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if s.log != nil {
			s.log.Warn(ctx, "session restore failed", "error", err)
		}
		// A restore aborted by Close keeps the token for the next run.
		if ctx.Err() == nil {
			_ = s.tokens.Clear(ctx)
		}
		return
	}
	s.setSession(&models.Session{UserID: out.UserID, Email: out.Email}, token)
}

func isTransient(err error) bool {
	return errorIsAny(err, ErrServiceUnavailable, ErrNetworkUnreachable)
}

// SignUp creates an account plus its initial per-user document and signs
// the new user in.
func (s *HTTPStore) SignUp(ctx context.Context, email, password string, profile models.Profile) (*models.Session, error) {
	req := signUpRequest{Email: email, Password: password, Profile: profile}
	var out sessionResponse
	if err := s.doJSON(ctx, http.MethodPost, "/v1/auth/signup", req, &out, ""); err != nil {
		return nil, err
	}

	doc := models.NewUserDocument(email)
	if len(profile) > 0 {
		doc.Profile = profile
	}
	if err := s.doJSON(ctx, http.MethodPut, "/v1/users/"+out.UserID+"/document", doc, nil, out.AccessToken); err != nil {
		if s.log != nil {
			s.log.Warn(ctx, "initial document creation failed", "error", err)
		}
	}

	sess := &models.Session{UserID: out.UserID, Email: out.Email}
	s.storeToken(ctx, out.AccessToken)
	s.setSession(sess, out.AccessToken)
	return sess, nil
}

// SignIn authenticates and establishes the session. It does not load data.
func (s *HTTPStore) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	req := signInRequest{Email: email, Password: password}
	var out sessionResponse
	if err := s.doJSON(ctx, http.MethodPost, "/v1/auth/signin", req, &out, ""); err != nil {
		return nil, err
	}
	sess := &models.Session{UserID: out.UserID, Email: out.Email}
	s.storeToken(ctx, out.AccessToken)
	s.setSession(sess, out.AccessToken)
	return sess, nil
}

// SignOut revokes the session server-side and always clears the local
// session and stored token, even when the revocation call fails.
func (s *HTTPStore) SignOut(ctx context.Context) error {
	err := s.doJSON(ctx, http.MethodPost, "/v1/auth/signout", nil, nil, s.bearer())

	if s.tokens != nil {
		_ = s.tokens.Clear(ctx)
	}
	s.setSession(nil, "")
	return err
}

// LoadUserDocument fetches profile plus the three collections. A missing
// document for an authenticated user is recreated with defaults before
// being returned, healing a corrupted or never-initialized remote record.
func (s *HTTPStore) LoadUserDocument(ctx context.Context, userID string) (*models.UserDocument, error) {
	var doc models.UserDocument
	err := s.doJSON(ctx, http.MethodGet, "/v1/users/"+userID+"/document", nil, &doc, s.bearer())
	if err == nil {
		doc.Normalize()
		return &doc, nil
	}
	if !errorIsAny(err, ErrDocumentMissing) {
		return nil, err
	}

	email := ""
	if sess := s.Session(); sess != nil {
		email = sess.Email
	}
	fresh := models.NewUserDocument(email)
	if err := s.doJSON(ctx, http.MethodPut, "/v1/users/"+userID+"/document", fresh, nil, s.bearer()); err != nil {
		return nil, fmt.Errorf("initializing user document: %w", err)
	}
	return fresh, nil
}

// SaveField merge-writes a single top-level document field.
func (s *HTTPStore) SaveField(ctx context.Context, userID, field string, value any) error {
	patch := map[string]any{field: value}
	return s.doJSON(ctx, http.MethodPatch, "/v1/users/"+userID+"/document", patch, nil, s.bearer())
}

// Ping checks backend liveness.
func (s *HTTPStore) Ping(ctx context.Context) error {
	return s.doJSON(ctx, http.MethodGet, "/v1/health", nil, nil, "")
}

// Close stops a session restore still in flight and releases idle
// connections.
func (s *HTTPStore) Close() error {
	s.cancel()
	s.httpc.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) storeToken(ctx context.Context, token string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Save(ctx, token); err != nil && s.log != nil {
		s.log.Warn(ctx, "storing access token failed", "error", err)
	}
}

// --- wire types ---

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Profile  models.Profile `json:"profile,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// doJSON performs one request against the backend, marshalling body in and
// out, and maps failures into the package taxonomy.
func (s *HTTPStore) doJSON(ctx context.Context, method, path string, in, out any, token string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return s.mapError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// mapError translates a backend failure into the closed taxonomy. The error
// code in the body wins over the HTTP status.
func (s *HTTPStore) mapError(resp *http.Response) error {
	var ae apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &ae)

	switch ae.Code {
	case "invalid-credentials", "user-not-found", "wrong-password":
		return ErrInvalidCredentials
	case "email-already-in-use":
		return ErrAccountExists
	case "weak-password":
		return ErrWeakPassword
	case "permission-denied":
		return ErrPermissionDenied
	case "unavailable":
		return ErrServiceUnavailable
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case resp.StatusCode == http.StatusForbidden:
		return ErrPermissionDenied
	case resp.StatusCode == http.StatusNotFound:
		return ErrDocumentMissing
	case resp.StatusCode == http.StatusConflict:
		return ErrAccountExists
	case resp.StatusCode >= 500:
		return ErrServiceUnavailable
	}
	return fmt.Errorf("remote store: unexpected status %s", resp.Status)
}

// tokenExpired reports whether the JWT carries an exp claim in the past.
// Opaque or malformed tokens are not considered expired; the server has the
// final say.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func errorIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
