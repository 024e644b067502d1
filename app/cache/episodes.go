package cache

import (
	"sync/atomic"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"

	"github.com/thewpminute/podloom/app/feed"
)

// EpisodeCache is the TTL-bound primary read path for episode lists. It
// is expected to be occasionally empty; the durable store backs it up.
//
// The generation counter is the cache-generation token downstream render
// caches key on: a successful refresh bumps it, invalidating rendered
// HTML without enumerating entries.
type EpisodeCache struct {
	entries    cache.Cache[string, []feed.Episode]
	ttl        time.Duration
	generation atomic.Int64
}

func NewEpisodeCache(ttl time.Duration) *EpisodeCache {
	return &EpisodeCache{
		entries: cache.NewCache[string, []feed.Episode]().WithTTL(ttl),
		ttl:     ttl,
	}
}

func (c *EpisodeCache) Get(feedID string) ([]feed.Episode, bool) {
	return c.entries.Get(feedID)
}

func (c *EpisodeCache) Set(feedID string, episodes []feed.Episode) {
	c.entries.Set(feedID, episodes, c.ttl)
}

func (c *EpisodeCache) Delete(feedID string) {
	c.entries.Invalidate(feedID)
}

func (c *EpisodeCache) Purge() {
	c.entries.Purge()
}

func (c *EpisodeCache) TTL() time.Duration {
	return c.ttl
}

func (c *EpisodeCache) Generation() int64 {
	return c.generation.Load()
}

func (c *EpisodeCache) BumpGeneration() int64 {
	return c.generation.Add(1)
}
