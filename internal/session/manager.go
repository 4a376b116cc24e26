// Package session owns the client's authenticated-session state: the
// token triple, its persistence, and the register/login/refresh/logout
// operations that move between the anonymous and authenticated states.
package session

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kindra-app/kindra-client/internal/api"
	"github.com/kindra-app/kindra-client/internal/tokenstore"
	"github.com/kindra-app/kindra-client/pkg/errors"
	"github.com/kindra-app/kindra-client/pkg/jwt"
	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/kindra-app/kindra-client/pkg/metrics"
	"go.uber.org/zap"
)

// Auth endpoints
const (
	registerPath = "/auth/register"
	loginPath    = "/auth/login"
	refreshPath  = "/auth/refresh"
)

// Generic failure phrases shown when the backend returns no structured
// message
const (
	msgRegisterFailed = "Registration failed. Please try again."
	msgLoginFailed    = "Login failed. Please check your credentials."
	msgRefreshFailed  = "Your session could not be refreshed. Please log in again."
)

// AuthAPI is the slice of the HTTP client the session layer uses
type AuthAPI interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
}

// Credentials carries a register/login request. At least one of Email
// and Phone is required alongside the password.
type Credentials struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
	Password string `json:"password" validate:"required,min=8"`
}

// tokenResponse is the backend's auth response shape
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// refreshRequest mints a new token triple from a refresh token
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Snapshot is an immutable view of the session state.
// IsAuthenticated is derived from AccessToken presence at snapshot
// time; it is never stored independently.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	TokenType    string

	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// Manager is the single source of truth for session state. It is the
// sole writer to the token store and implements api.TokenSource for the
// HTTP client's Authorization header.
type Manager struct {
	api      AuthAPI
	store    tokenstore.Store
	validate *validator.Validate

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	tokenType    string
	loading      bool
	lastErr      string

	listeners []func(Snapshot)

	// refreshing guards UnauthorizedHook against re-entry: the refresh
	// request goes through the same client, and a 401 on it must not
	// trigger another refresh
	refreshing atomic.Bool
}

// NewManager creates a Manager and hydrates it synchronously from the
// token store, so a restarted client resumes its session before any
// caller can observe an anonymous state.
func NewManager(authAPI AuthAPI, store tokenstore.Store) *Manager {
	m := &Manager{
		api:      authAPI,
		store:    store,
		validate: validator.New(),
	}

	tokens, err := store.Load()
	if err != nil {
		// Start anonymous rather than failing construction; the user
		// can always log in again
		logger.LogError(err, "Failed to hydrate session from token store")
		return m
	}
	m.accessToken = tokens.AccessToken
	m.refreshToken = tokens.RefreshToken
	m.tokenType = tokens.TokenType

	if !tokens.IsZero() {
		logger.Info("Session hydrated from token store")
	}
	return m
}

// OnChange registers a listener invoked after every state change.
// Listeners run synchronously on the mutating goroutine and must not
// call back into the Manager's operations.
func (m *Manager) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Snapshot returns the current session state
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		AccessToken:     m.accessToken,
		RefreshToken:    m.refreshToken,
		TokenType:       m.tokenType,
		IsAuthenticated: m.accessToken != "",
		IsLoading:       m.loading,
		Err:             m.lastErr,
	}
}

// IsAuthenticated reports whether an access token is held
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken != ""
}

// Err returns the last operation's user-facing failure message
func (m *Manager) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Token implements api.TokenSource
func (m *Manager) Token() (tokenType, accessToken string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accessToken == "" {
		return "", "", false
	}
	tokenType = m.tokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType, m.accessToken, true
}

// ExpiresSoon reports whether the access token expires inside the given
// window. Callers use this to decide when to call RefreshAccessToken.
func (m *Manager) ExpiresSoon(window time.Duration) bool {
	m.mu.RLock()
	token := m.accessToken
	m.mu.RUnlock()
	if token == "" {
		return false
	}
	soon, err := jwt.ExpiresWithin(token, window)
	if err != nil {
		// Opaque (non-JWT) access tokens can't be inspected
		return false
	}
	return soon
}

// Register creates an account and establishes a session
func (m *Manager) Register(ctx context.Context, creds Credentials) error {
	if err := m.checkCredentials(creds); err != nil {
		return err
	}
	return m.authOp(ctx, "register", registerPath, creds, msgRegisterFailed)
}

// Login checks credentials and establishes a session
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if err := m.checkCredentials(creds); err != nil {
		return err
	}
	return m.authOp(ctx, "login", loginPath, creds, msgLoginFailed)
}

// RefreshAccessToken mints a new token triple from the held refresh
// token, leaving the session authenticated throughout.
func (m *Manager) RefreshAccessToken(ctx context.Context) error {
	m.mu.RLock()
	refresh := m.refreshToken
	m.mu.RUnlock()
	if refresh == "" {
		return errors.ErrNoSession
	}
	return m.authOp(ctx, "refresh", refreshPath, refreshRequest{RefreshToken: refresh}, msgRefreshFailed)
}

// Logout clears the in-memory session and the token store. It is
// synchronous, unconditional and never fails; a store error is logged
// and swallowed because the in-memory session is already gone.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.tokenType = ""
	m.loading = false
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		logger.LogError(err, "Failed to clear token store on logout")
	}
	metrics.AuthOperations.WithLabelValues("logout", "success").Inc()
	logger.Info("Logged out")
	m.notify(snap)
}

// ClearError resets the last failure message, leaving tokens untouched.
// Forms call this before retrying so stale errors do not linger.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// checkCredentials validates a register/login request before any
// network traffic
func (m *Manager) checkCredentials(creds Credentials) error {
	if creds.Email == "" && creds.Phone == "" {
		err := errors.InvalidInputError("credentials", "email or phone is required")
		m.setError(err.Error())
		return err
	}
	if err := m.validate.Struct(creds); err != nil {
		wrapped := errors.InvalidInputError("credentials", firstValidationMessage(err))
		m.setError(wrapped.Error())
		return wrapped
	}
	return nil
}

func firstValidationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return "invalid email format"
		case "e164":
			return "invalid phone number format"
		case "min":
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		default:
			return fe.Field() + " is invalid"
		}
	}
	return "invalid credentials"
}

// authOp runs one auth operation: loading on, error cleared, backend
// call, then an atomic update of both the store and the in-memory
// fields on success.
func (m *Manager) authOp(ctx context.Context, operation, path string, body interface{}, genericMsg string) error {
	m.mu.Lock()
	m.loading = true
	m.lastErr = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)

	var resp tokenResponse
	if err := m.api.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		m.failOp(operation, genericMsg, err)
		return err
	}

	// Persist before the in-memory swap: a store failure leaves both
	// sides on the previous session rather than out of sync
	if err := m.store.Save(tokenstore.Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}); err != nil {
		m.failOp(operation, "Could not save your session. Please try again.", err)
		return err
	}

	m.mu.Lock()
	m.accessToken = resp.AccessToken
	m.refreshToken = resp.RefreshToken
	m.tokenType = resp.TokenType
	m.loading = false
	snap = m.snapshotLocked()
	m.mu.Unlock()

	metrics.AuthOperations.WithLabelValues(operation, "success").Inc()
	logger.Info("Auth operation succeeded", zap.String("operation", operation))
	m.notify(snap)
	return nil
}

func (m *Manager) failOp(operation, genericMsg string, err error) {
	msg := genericMsg
	var apiErr *api.Error
	if api.As(err, &apiErr) {
		if extracted := apiErr.Message(); extracted != "" {
			msg = extracted
		}
	}

	m.mu.Lock()
	m.loading = false
	m.lastErr = msg
	snap := m.snapshotLocked()
	m.mu.Unlock()

	metrics.AuthOperations.WithLabelValues(operation, "error").Inc()
	logger.Warn("Auth operation failed",
		zap.String("operation", operation),
		zap.Error(err))
	m.notify(snap)
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Manager) notify(snap Snapshot) {
	m.mu.RLock()
	listeners := make([]func(Snapshot), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// UnauthorizedHook adapts the manager to the HTTP client's 401-intercept
// seam: one silent refresh attempt, a forced logout when it fails.
// Wired only when auto-refresh is enabled in configuration.
func (m *Manager) UnauthorizedHook(ctx context.Context) bool {
	if !m.refreshing.CompareAndSwap(false, true) {
		// Already inside a refresh: this 401 is the refresh request
		// itself being rejected
		return false
	}
	defer m.refreshing.Store(false)

	if err := m.RefreshAccessToken(ctx); err != nil {
		logger.Warn("Token refresh after 401 failed, forcing logout", zap.Error(err))
		m.Logout()
		return false
	}
	return true
}
