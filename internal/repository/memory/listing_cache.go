package memory

import (
	"time"

	"docchat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ListingCache keeps recently fetched per-user session listings so the
// sidebar refetch after every save does not hit the database each time.
// Writers must call Invalidate for the affected user.
type ListingCache struct {
	cache *cache.Cache
}

func NewListingCache() *ListingCache {
	// Default expiration of 5 minutes, purge sweep every 10 minutes.
	c := cache.New(5*time.Minute, 10*time.Minute)
	return &ListingCache{
		cache: c,
	}
}

func (r *ListingCache) Save(userId uuid.UUID, sessions []*entity.ChatSession) {
	r.cache.Set(userId.String(), sessions, cache.DefaultExpiration)
}

func (r *ListingCache) Get(userId uuid.UUID) ([]*entity.ChatSession, bool) {
	if x, found := r.cache.Get(userId.String()); found {
		return x.([]*entity.ChatSession), true
	}
	return nil, false
}

func (r *ListingCache) Invalidate(userId uuid.UUID) {
	r.cache.Delete(userId.String())
}
