package profile

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/kindra-app/kindra-client/internal/session"
	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/kindra-app/kindra-client/pkg/metrics"
)

const (
	mePath            = "/users/me"
	personalInfoPath  = "/users/me/personal-info"
	pictureUploadPath = "/users/me/profile-picture/upload"
	pictureURLPath    = "/users/me/profile-picture"
)

// API is the slice of the HTTP client the profile layer uses
type API interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
	Upload(ctx context.Context, path, field, filename string, file io.Reader, out interface{}) error
}

// Sessions is the read-only session view the profile layer consumes.
// The profile layer never writes session state.
type Sessions interface {
	IsAuthenticated() bool
	OnChange(fn func(session.Snapshot))
}

// Cache holds the authenticated user's merged Profile. Fetch failures
// are logged and swallowed: profile display is best-effort and must
// never block navigation.
type Cache struct {
	api      API
	sessions Sessions

	mu      sync.RWMutex
	current Profile
	wasAuth bool
}

// NewCache creates a Cache primed with the default Profile
func NewCache(apiClient API, sessions Sessions) *Cache {
	return &Cache{
		api:      apiClient,
		sessions: sessions,
		current:  Default(),
	}
}

// Current returns the cached Profile
func (c *Cache) Current() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Load fetches the full user document and replaces the cached Profile
// wholesale. It is a no-op while unauthenticated, and on any fetch
// error the previous (or default) Profile is retained.
func (c *Cache) Load(ctx context.Context) {
	if !c.sessions.IsAuthenticated() {
		return
	}

	var doc UserDocument
	if err := c.api.Do(ctx, http.MethodGet, mePath, nil, &doc); err != nil {
		metrics.ProfileRefreshTotal.WithLabelValues("error").Inc()
		logger.LogError(err, "Profile fetch failed, keeping cached profile")
		return
	}

	merged := Merge(doc)
	c.mu.Lock()
	c.current = merged
	c.mu.Unlock()
	metrics.ProfileRefreshTotal.WithLabelValues("success").Inc()
}

// Refresh re-runs Load. Callers invoke it after any mutation that could
// have changed backend-held profile fields, pulling the authoritative
// merged state back instead of patching the cache locally.
func (c *Cache) Refresh(ctx context.Context) {
	c.Load(ctx)
}

// Watch wires the auto-load trigger: the profile loads once whenever
// the session transitions to authenticated, covering both "already
// logged in at startup" and "just logged in". Loads run on their own
// goroutine so session listeners stay non-blocking.
func (c *Cache) Watch(ctx context.Context) {
	c.sessions.OnChange(func(snap session.Snapshot) {
		c.mu.Lock()
		was := c.wasAuth
		c.wasAuth = snap.IsAuthenticated
		c.mu.Unlock()

		if snap.IsAuthenticated && !was {
			go c.Load(ctx)
		}
	})

	if c.sessions.IsAuthenticated() {
		c.mu.Lock()
		c.wasAuth = true
		c.mu.Unlock()
		go c.Load(ctx)
	}
}

// PersonalInfoUpdate is the full-field body for the personal info
// endpoint. The backend expects every field on every update, with an
// always-empty pictures list.
type PersonalInfoUpdate struct {
	FirstName          string           `json:"first_name"`
	MiddleName         string           `json:"middle_name"`
	LastName           string           `json:"last_name"`
	Nickname           string           `json:"nickname"`
	Age                int              `json:"age"`
	Location           string           `json:"location"`
	RelationshipStatus string           `json:"relationship_status"`
	Gender             string           `json:"gender"`
	ProfilePictures    []ProfilePicture `json:"profile_pictures"`
}

// UpdatePersonalInfo replaces the backend's personal info section.
// Callers follow up with Refresh.
func (c *Cache) UpdatePersonalInfo(ctx context.Context, update PersonalInfoUpdate) error {
	if update.ProfilePictures == nil {
		update.ProfilePictures = []ProfilePicture{}
	}
	return c.api.Do(ctx, http.MethodPut, personalInfoPath, update, nil)
}

// UploadPicture sends a profile picture as multipart/form-data.
// Callers follow up with Refresh.
func (c *Cache) UploadPicture(ctx context.Context, filename string, file io.Reader) error {
	return c.api.Upload(ctx, pictureUploadPath, "file", filename, file, nil)
}

// AddPictureURL attaches an already-hosted picture by URL.
// Callers follow up with Refresh.
func (c *Cache) AddPictureURL(ctx context.Context, url string) error {
	body := map[string]string{"url": url}
	return c.api.Do(ctx, http.MethodPost, pictureURLPath, body, nil)
}
