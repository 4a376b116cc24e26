package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kindra-app/kindra-client/internal/api"
	"github.com/kindra-app/kindra-client/internal/session"
	"github.com/kindra-app/kindra-client/internal/tokenstore"
	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Initialize(logger.Config{
		Level:       "info",
		Environment: "test",
	})
}

// tokenBackend is an httptest backend answering every auth endpoint
// with a fixed token triple
func tokenBackend(t *testing.T, access, refresh string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":%q,"token_type":"Bearer"}`, access, refresh)
	}))
}

func rejectingBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newManager(t *testing.T, backendURL string, store tokenstore.Store) *session.Manager {
	t.Helper()
	client := api.New(backendURL)
	mgr := session.NewManager(client, store)
	client.SetTokenSource(mgr)
	return mgr
}

var validCreds = session.Credentials{Email: "a@b.com", Password: "hunter22x"}

func TestLogin_Success(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	store := tokenstore.NewMemory()
	mgr := newManager(t, server.URL, store)

	err := mgr.Login(context.Background(), validCreds)
	require.NoError(t, err)

	snap := mgr.Snapshot()
	assert.Equal(t, "AT1", snap.AccessToken)
	assert.Equal(t, "RT1", snap.RefreshToken)
	assert.Equal(t, "Bearer", snap.TokenType)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Err)

	// The store reflects the same triple
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "AT1", saved.AccessToken)
	assert.Equal(t, "RT1", saved.RefreshToken)
	assert.Equal(t, "Bearer", saved.TokenType)
}

func TestLogin_InvalidCredentialsSurfacesMessage(t *testing.T) {
	server := rejectingBackend(t, http.StatusUnauthorized, `{"detail":[{"msg":"Invalid credentials"}]}`)
	defer server.Close()
	store := tokenstore.NewMemory()
	mgr := newManager(t, server.URL, store)

	err := mgr.Login(context.Background(), validCreds)
	require.Error(t, err)

	assert.Equal(t, "Invalid credentials", mgr.Err())
	assert.False(t, mgr.IsAuthenticated())

	saved, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.True(t, saved.IsZero())
}

func TestLogin_GenericMessageWhenBodyUnstructured(t *testing.T) {
	server := rejectingBackend(t, http.StatusBadGateway, "upstream broken")
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())

	err := mgr.Login(context.Background(), validCreds)
	require.Error(t, err)
	assert.Equal(t, "Login failed. Please check your credentials.", mgr.Err())
}

func TestRegister_Success(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())

	require.NoError(t, mgr.Register(context.Background(), validCreds))
	assert.True(t, mgr.IsAuthenticated())
}

func TestCredentialValidation(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()

	tests := []struct {
		name  string
		creds session.Credentials
	}{
		{"missing identifier", session.Credentials{Password: "hunter22x"}},
		{"bad email", session.Credentials{Email: "nope", Password: "hunter22x"}},
		{"bad phone", session.Credentials{Phone: "12345", Password: "hunter22x"}},
		{"short password", session.Credentials{Email: "a@b.com", Password: "x"}},
		{"missing password", session.Credentials{Email: "a@b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := newManager(t, server.URL, tokenstore.NewMemory())
			err := mgr.Login(context.Background(), tt.creds)
			require.Error(t, err)
			assert.False(t, mgr.IsAuthenticated())
			assert.NotEmpty(t, mgr.Err())
		})
	}
}

func TestHydration_RoundTrip(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	store := tokenstore.NewMemory()

	mgr := newManager(t, server.URL, store)
	require.NoError(t, mgr.Login(context.Background(), validCreds))

	// A fresh manager over the same store stands in for an app restart
	restarted := newManager(t, server.URL, store)
	snap := restarted.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "AT1", snap.AccessToken)
	assert.Equal(t, "RT1", snap.RefreshToken)
	assert.Equal(t, "Bearer", snap.TokenType)
}

func TestLogout_ClearsEverything(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	store := tokenstore.NewMemory()
	mgr := newManager(t, server.URL, store)

	require.NoError(t, mgr.Login(context.Background(), validCreds))
	mgr.Logout()

	snap := mgr.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, snap.AccessToken)
	assert.Empty(t, snap.RefreshToken)
	assert.Empty(t, snap.TokenType)
	assert.Empty(t, snap.Err)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.True(t, saved.IsZero())

	// Logging out twice is harmless
	mgr.Logout()
	assert.False(t, mgr.IsAuthenticated())
}

func TestRefreshAccessToken_ReplacesTokens(t *testing.T) {
	var issued int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issued++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"AT%d","refresh_token":"RT%d","token_type":"Bearer"}`, issued, issued)
	}))
	defer server.Close()
	store := tokenstore.NewMemory()
	mgr := newManager(t, server.URL, store)

	require.NoError(t, mgr.Login(context.Background(), validCreds))
	require.NoError(t, mgr.RefreshAccessToken(context.Background()))

	snap := mgr.Snapshot()
	assert.Equal(t, "AT2", snap.AccessToken)
	assert.Equal(t, "RT2", snap.RefreshToken)
	assert.True(t, snap.IsAuthenticated)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "AT2", saved.AccessToken)
}

func TestRefreshAccessToken_NoSession(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())

	err := mgr.RefreshAccessToken(context.Background())
	require.Error(t, err)
}

func TestClearError(t *testing.T) {
	server := rejectingBackend(t, http.StatusUnauthorized, `{"detail":[{"msg":"Invalid credentials"}]}`)
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())

	_ = mgr.Login(context.Background(), validCreds)
	require.NotEmpty(t, mgr.Err())

	mgr.ClearError()
	assert.Empty(t, mgr.Err())
	assert.False(t, mgr.IsAuthenticated())
}

func TestFailedOperationKeepsPriorSession(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	store := tokenstore.NewMemory()
	mgr := newManager(t, server.URL, store)
	require.NoError(t, mgr.Login(context.Background(), validCreds))
	server.Close()

	// Backend gone: the refresh fails but the session survives
	err := mgr.RefreshAccessToken(context.Background())
	require.Error(t, err)

	snap := mgr.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "AT1", snap.AccessToken)
	assert.NotEmpty(t, snap.Err)
	assert.False(t, snap.IsLoading)
}

// failingStore rejects every save to exercise the store/memory sync
// invariant
type failingStore struct{}

func (failingStore) Save(tokenstore.Tokens) error { return fmt.Errorf("disk full") }
func (failingStore) Load() (tokenstore.Tokens, error) {
	return tokenstore.Tokens{}, nil
}
func (failingStore) Clear() error { return nil }

func TestStoreSaveFailureLeavesSessionAnonymous(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	mgr := newManager(t, server.URL, failingStore{})

	err := mgr.Login(context.Background(), validCreds)
	require.Error(t, err)

	// Memory never got ahead of the store
	assert.False(t, mgr.IsAuthenticated())
	assert.NotEmpty(t, mgr.Err())
}

func TestOnChange_NotifiesTransitions(t *testing.T) {
	server := tokenBackend(t, "AT1", "RT1")
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())

	var snaps []session.Snapshot
	mgr.OnChange(func(s session.Snapshot) {
		snaps = append(snaps, s)
	})

	require.NoError(t, mgr.Login(context.Background(), validCreds))
	mgr.Logout()

	require.GreaterOrEqual(t, len(snaps), 3)
	first := snaps[0]
	assert.True(t, first.IsLoading)
	last := snaps[len(snaps)-1]
	assert.False(t, last.IsAuthenticated)

	var sawAuthenticated bool
	for _, s := range snaps {
		if s.IsAuthenticated {
			sawAuthenticated = true
		}
	}
	assert.True(t, sawAuthenticated)
}

func TestToken_DefaultsTokenType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT1","refresh_token":"RT1","token_type":""}`))
	}))
	defer server.Close()
	mgr := newManager(t, server.URL, tokenstore.NewMemory())
	require.NoError(t, mgr.Login(context.Background(), validCreds))

	tokenType, access, ok := mgr.Token()
	require.True(t, ok)
	assert.Equal(t, "Bearer", tokenType)
	assert.Equal(t, "AT1", access)
}

func TestUnauthorizedHook_ForcesLogoutWhenRefreshFails(t *testing.T) {
	server := rejectingBackend(t, http.StatusUnauthorized, `{"detail":[{"msg":"Refresh token expired"}]}`)
	defer server.Close()
	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(tokenstore.Tokens{AccessToken: "stale", RefreshToken: "stale", TokenType: "Bearer"}))
	mgr := newManager(t, server.URL, store)
	require.True(t, mgr.IsAuthenticated())

	ok := mgr.UnauthorizedHook(context.Background())

	assert.False(t, ok)
	assert.False(t, mgr.IsAuthenticated())
	saved, err := store.Load()
	require.NoError(t, err)
	assert.True(t, saved.IsZero())
}

// newAutoRefreshManager wires the hook onto the shared client the same
// way the CLI does when auto-refresh is enabled
func newAutoRefreshManager(t *testing.T, backendURL string, store tokenstore.Store) (*api.Client, *session.Manager) {
	t.Helper()
	client := api.New(backendURL)
	mgr := session.NewManager(client, store)
	client.SetTokenSource(mgr)
	client.SetUnauthorizedHook(mgr.UnauthorizedHook)
	return client, mgr
}

func TestAutoRefresh_RejectedRefreshAttemptsOnce(t *testing.T) {
	var refreshCalls, meCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"Refresh token expired"}]}`))
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(tokenstore.Tokens{AccessToken: "stale", RefreshToken: "stale", TokenType: "Bearer"}))
	client, mgr := newAutoRefreshManager(t, server.URL, store)

	err := client.Do(context.Background(), http.MethodGet, "/users/me", nil, nil)
	require.Error(t, err)

	// The rejected refresh is attempted exactly once, never from inside
	// its own 401, and the session is forced out
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, 1, meCalls)
	assert.False(t, mgr.IsAuthenticated())
	saved, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.True(t, saved.IsZero())
}

func TestAutoRefresh_RecoversAndReplaysOnce(t *testing.T) {
	var refreshCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT2","refresh_token":"RT2","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer AT2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"a@b.com"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(tokenstore.Tokens{AccessToken: "stale", RefreshToken: "RT1", TokenType: "Bearer"}))
	client, mgr := newAutoRefreshManager(t, server.URL, store)

	var out struct {
		Email string `json:"email"`
	}
	err := client.Do(context.Background(), http.MethodGet, "/users/me", nil, &out)

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", out.Email)
	assert.Equal(t, 1, refreshCalls)
	snap := mgr.Snapshot()
	assert.Equal(t, "AT2", snap.AccessToken)
	assert.True(t, snap.IsAuthenticated)
}
