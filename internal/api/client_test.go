package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kindra-app/kindra-client/internal/api"
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

type staticTokens struct {
	tokenType, access string
	ok                bool
}

func (s staticTokens) Token() (string, string, bool) {
	return s.tokenType, s.access, s.ok
}

func TestDo_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"a@b.com"}`))
	}))
	defer server.Close()

	client := api.New(server.URL)

	var out struct {
		Email string `json:"email"`
	}
	err := client.Do(context.Background(), http.MethodGet, "/users/me", nil, &out)

	require.NoError(t, err)
	assert.Equal(t, "a@b.com", out.Email)
}

func TestDo_AttachesAuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := api.New(server.URL, api.WithTokenSource(staticTokens{"Bearer", "AT1", true}))

	err := client.Do(context.Background(), http.MethodGet, "/users/me", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Bearer AT1", gotAuth)
}

func TestDo_NoSessionSendsNoHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := api.New(server.URL, api.WithTokenSource(staticTokens{ok: false}))

	err := client.Do(context.Background(), http.MethodGet, "/users/me", nil, nil)

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestDo_ErrorCarriesStatusAndMessage(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "validation detail list",
			status:  http.StatusUnauthorized,
			body:    `{"detail":[{"msg":"Invalid credentials"}]}`,
			wantMsg: "Invalid credentials",
		},
		{
			name:    "detail string",
			status:  http.StatusNotFound,
			body:    `{"detail":"User not found"}`,
			wantMsg: "User not found",
		},
		{
			name:    "error field",
			status:  http.StatusInternalServerError,
			body:    `{"error":"boom"}`,
			wantMsg: "boom",
		},
		{
			name:    "unparseable body",
			status:  http.StatusBadGateway,
			body:    `<html>upstream</html>`,
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := api.New(server.URL)
			err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)

			var apiErr *api.Error
			require.True(t, api.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Message())
		})
	}
}

func TestDo_NetworkErrorHasZeroStatus(t *testing.T) {
	client := api.New("http://127.0.0.1:0")

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)

	var apiErr *api.Error
	require.True(t, api.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
}

func TestDo_UnauthorizedHookReplaysOnce(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	var hookCalls int
	client := api.New(server.URL, api.WithUnauthorizedHook(func(ctx context.Context) bool {
		hookCalls++
		return true
	}))

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, hookCalls)
}

func TestDo_UnauthorizedHookDecliningKeepsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := api.New(server.URL, api.WithUnauthorizedHook(func(ctx context.Context) bool {
		return false
	}))

	err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)

	var apiErr *api.Error
	require.True(t, api.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestUpload_SendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "avatar.png", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://x/avatar.png"}`))
	}))
	defer server.Close()

	client := api.New(server.URL)

	var out struct {
		URL string `json:"url"`
	}
	err := client.Upload(context.Background(), "/upload", "file", "avatar.png", strings.NewReader("fake-bytes"), &out)

	require.NoError(t, err)
	assert.Equal(t, "https://x/avatar.png", out.URL)
}

func TestDo_DecodeFailureKeepsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer server.Close()

	client := api.New(server.URL)

	var out map[string]string
	err := client.Do(context.Background(), http.MethodGet, "/x", nil, &out)

	var apiErr *api.Error
	require.True(t, api.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.Status)
}
