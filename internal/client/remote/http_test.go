package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serenityspace/healthkeeper/internal/client/models"
)

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

func newStore(t *testing.T, baseURL string, tokens TokenStore) *HTTPStore {
	t.Helper()
	s := NewHTTPStore(Options{BaseURL: baseURL, Timeout: 2 * time.Second, Tokens: tokens})
	t.Cleanup(func() { _ = s.Close() })
	<-s.Ready()
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestSignInEstablishesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/signin", r.URL.Path)

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.c", req.Email)

		writeJSON(w, http.StatusOK, map[string]string{
			"userId": "user-1", "email": req.Email, "accessToken": "tok-1",
		})
	}))
	defer srv.Close()

	tokens := &memTokens{}
	s := newStore(t, srv.URL, tokens)

	var transitions []*models.Session
	s.OnSessionChange(func(sess *models.Session) { transitions = append(transitions, sess) })

	sess, err := s.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "a@b.c", sess.Email)

	require.NotNil(t, s.Session())
	assert.Equal(t, "tok-1", tokens.token)
	require.Len(t, transitions, 1)
	assert.Equal(t, "user-1", transitions[0].UserID)
}

func TestSignInWrongPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"code": "wrong-password", "message": "wrong password",
		})
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	_, err := s.SignIn(context.Background(), "a@b.c", "bad")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, s.Session())
}

func TestSignUpCreatesInitialDocument(t *testing.T) {
	var putDoc *models.UserDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/auth/signup":
			writeJSON(w, http.StatusCreated, map[string]string{
				"userId": "user-9", "email": "new@b.c", "accessToken": "tok-9",
			})
		case r.Method == http.MethodPut && r.URL.Path == "/v1/users/user-9/document":
			assert.Equal(t, "Bearer tok-9", r.Header.Get("Authorization"))
			var doc models.UserDocument
			require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
			putDoc = &doc
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, &memTokens{})
	sess, err := s.SignUp(context.Background(), "new@b.c", "secret", models.Profile{"name": "Newbie"})
	require.NoError(t, err)
	assert.Equal(t, "user-9", sess.UserID)

	require.NotNil(t, putDoc)
	assert.Equal(t, "new@b.c", putDoc.Email)
	assert.Equal(t, "Newbie", putDoc.Profile.Name())
	assert.Empty(t, putDoc.Medications)
}

func TestSignUpEmailTaken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"code": "email-already-in-use"})
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	_, err := s.SignUp(context.Background(), "a@b.c", "secret", nil)
	require.ErrorIs(t, err, ErrAccountExists)
}

func TestSignOutClearsSessionEvenOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/signin" {
			writeJSON(w, http.StatusOK, map[string]string{
				"userId": "user-1", "email": "a@b.c", "accessToken": "tok-1",
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tokens := &memTokens{}
	s := newStore(t, srv.URL, tokens)
	_, err := s.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)

	err = s.SignOut(context.Background())
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Nil(t, s.Session())
	assert.Empty(t, tokens.token)
}

func TestLoadUserDocumentNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/user-1/document", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"email": "a@b.c"})
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	doc, err := s.LoadUserDocument(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotNil(t, doc.Profile)
	assert.NotNil(t, doc.Medications)
	assert.NotNil(t, doc.Appointments)
	assert.NotNil(t, doc.Vitals)
}

func TestLoadUserDocumentSelfHeals(t *testing.T) {
	var put bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/auth/signin":
			writeJSON(w, http.StatusOK, map[string]string{
				"userId": "user-1", "email": "alice@example.com", "accessToken": "tok-1",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/users/user-1/document":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/v1/users/user-1/document":
			put = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	_, err := s.SignIn(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	doc, err := s.LoadUserDocument(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, put, "missing document must be recreated")
	assert.Equal(t, "alice@example.com", doc.Email)
	assert.Equal(t, "alice", doc.Profile.Name())
	assert.Empty(t, doc.Vitals)
}

func TestSaveFieldSendsMergePatch(t *testing.T) {
	var patch map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/auth/signin" {
			writeJSON(w, http.StatusOK, map[string]string{
				"userId": "user-1", "email": "a@b.c", "accessToken": "tok-1",
			})
			return
		}
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/v1/users/user-1/document", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := newStore(t, srv.URL, nil)
	_, err := s.SignIn(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)

	vitals := []models.Record{{"id": "v1", "type": "bp"}}
	require.NoError(t, s.SaveField(context.Background(), "user-1", FieldVitals, vitals))

	require.Len(t, patch, 1, "only the written field may appear in the patch")
	require.Contains(t, patch, FieldVitals)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"code invalid credentials", http.StatusBadRequest, "invalid-credentials", ErrInvalidCredentials},
		{"code user not found", http.StatusNotFound, "user-not-found", ErrInvalidCredentials},
		{"code weak password", http.StatusBadRequest, "weak-password", ErrWeakPassword},
		{"code permission denied", http.StatusForbidden, "permission-denied", ErrPermissionDenied},
		{"code unavailable wins over status", http.StatusBadRequest, "unavailable", ErrServiceUnavailable},
		{"status unauthorized", http.StatusUnauthorized, "", ErrInvalidCredentials},
		{"status forbidden", http.StatusForbidden, "", ErrPermissionDenied},
		{"status not found", http.StatusNotFound, "", ErrDocumentMissing},
		{"status conflict", http.StatusConflict, "", ErrAccountExists},
		{"status bad gateway", http.StatusBadGateway, "", ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, map[string]string{"code": tt.code})
			}))
			defer srv.Close()

			s := newStore(t, srv.URL, nil)
			// A plain 404 triggers self-healing; the PUT fails against this
			// server with the same status, so the sentinel still surfaces.
			_, err := s.LoadUserDocument(context.Background(), "user-1")
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	s := newStore(t, srv.URL, nil)
	err := s.Ping(context.Background())
	require.ErrorIs(t, err, ErrNetworkUnreachable)
}

func TestRestoreSessionFromStoredToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/session", r.URL.Path)
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"userId": "user-1", "email": "a@b.c"})
	}))
	defer srv.Close()

	tokens := &memTokens{token: token}
	s := newStore(t, srv.URL, tokens)

	sess := s.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, "a@b.c", sess.Email)
}

func TestRestoreSessionSkipsExpiredToken(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := &memTokens{token: signedToken(t, time.Now().Add(-time.Hour))}
	s := newStore(t, srv.URL, tokens)

	assert.Nil(t, s.Session())
	assert.Zero(t, requests)
	assert.Empty(t, tokens.token, "expired token must be discarded")
}

func TestRestoreSessionRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "invalid-credentials"})
	}))
	defer srv.Close()

	tokens := &memTokens{token: signedToken(t, time.Now().Add(time.Hour))}
	s := newStore(t, srv.URL, tokens)

	assert.Nil(t, s.Session())
	assert.Empty(t, tokens.token)
}

func TestCloseStopsSessionRestore(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		// Hold the restore request open until the client gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	tokens := &memTokens{token: token}
	s := NewHTTPStore(Options{BaseURL: srv.URL, Timeout: 30 * time.Second, Tokens: tokens})
	require.NoError(t, s.Close())

	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("session restore kept running after Close")
	}

	assert.Nil(t, s.Session())
	assert.Equal(t, token, tokens.token, "an aborted restore keeps the token for the next run")
}

func TestTokenExpired(t *testing.T) {
	assert.False(t, tokenExpired("not-a-jwt"), "opaque tokens are left to the server")
	assert.False(t, tokenExpired(signedToken(t, time.Now().Add(time.Hour))))
	assert.True(t, tokenExpired(signedToken(t, time.Now().Add(-time.Minute))))
}
