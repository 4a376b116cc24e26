package profile

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/kindra-app/kindra-client/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	peerKeyPrefix   = "peer:"
	peerCacheName   = "peer_profiles"
	peerSweepPeriod = 30 * time.Second
)

// PeerCache is a TTL cache of other members' merged profiles, backing
// the profile-browsing pages. Entries expire so a viewed profile is
// never more than one TTL stale.
type PeerCache struct {
	cache *gocache.Cache
	api   API
}

// NewPeerCache creates a peer profile cache with the given entry TTL
func NewPeerCache(apiClient API, ttl time.Duration) *PeerCache {
	return &PeerCache{
		cache: gocache.New(ttl, peerSweepPeriod),
		api:   apiClient,
	}
}

// Get returns a peer's merged Profile, fetching it on a cache miss.
// Unlike the current user's profile, a failed peer fetch is surfaced:
// the browsing page shows an empty slot rather than placeholder data
// for a real person.
func (pc *PeerCache) Get(ctx context.Context, userID string) (Profile, error) {
	key := peerKeyPrefix + userID

	if data, found := pc.cache.Get(key); found {
		if p, ok := data.(Profile); ok {
			metrics.ProfileCacheHits.WithLabelValues(peerCacheName).Inc()
			return p, nil
		}
		// Wrong type means a programming error somewhere; drop the entry
		logger.Error("Invalid peer cache data type", zap.String("user_id", userID))
		pc.cache.Delete(key)
	}

	metrics.ProfileCacheMisses.WithLabelValues(peerCacheName).Inc()

	var doc UserDocument
	if err := pc.api.Do(ctx, http.MethodGet, "/users/"+userID, nil, &doc); err != nil {
		return Profile{}, fmt.Errorf("failed to fetch profile for %s: %w", userID, err)
	}

	merged := Merge(doc)
	pc.cache.SetDefault(key, merged)
	return merged, nil
}

// Invalidate drops a single cached peer profile
func (pc *PeerCache) Invalidate(userID string) {
	pc.cache.Delete(peerKeyPrefix + userID)
}

// Flush drops every cached peer profile
func (pc *PeerCache) Flush() {
	pc.cache.Flush()
}
