package embedding

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
)

// Cached memoizes another service's embeddings keyed by model hash, so
// re-aggregating overlapping sources never re-embeds the same identity.
// Uses patrickmn/go-cache for TTL-based expiry.
type Cached struct {
	inner  Service
	store  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Service = (*Cached)(nil)

// NewCached wraps inner with the default TTL and cleanup interval.
func NewCached(inner Service) *Cached {
	return NewCachedTTL(inner, constants.CacheTTL, constants.CacheCleanupInterval)
}

// NewCachedTTL wraps inner with an explicit TTL and cleanup interval.
func NewCachedTTL(inner Service, ttl, cleanup time.Duration) *Cached {
	return &Cached{
		inner: inner,
		store: gocache.New(ttl, cleanup),
	}
}

// GenerateModelEmbedding returns the cached vector for the record's
// identity, or asks the inner service and caches the result.
func (c *Cached) GenerateModelEmbedding(ctx context.Context, rec *catalog.ModelRecord) ([]float32, error) {
	key := rec.ModelHash
	if key == "" {
		key = catalog.ComputeModelHash(rec)
	}

	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return v.([]float32), nil
	}
	c.misses.Add(1)

	vec, err := c.inner.GenerateModelEmbedding(ctx, rec)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.store.Set(key, vec, gocache.DefaultExpiration)
	}
	return vec, nil
}

// Hits reports how many lookups were served from cache.
func (c *Cached) Hits() uint64 { return c.hits.Load() }

// Misses reports how many lookups fell through to the inner service.
func (c *Cached) Misses() uint64 { return c.misses.Load() }

// ItemCount returns the number of cached vectors.
func (c *Cached) ItemCount() int { return c.store.ItemCount() }
