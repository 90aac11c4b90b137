package api

// Responses are kept in a bounded in-memory LRU. golang-lru has no notion of
// expiry, so each entry carries its own deadline which is checked on read;
// expired entries stay in place until the next successful fetch replaces them.

import (
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

// Clock abstracts time.Now so tests can move time forward.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheKey struct {
	operation  string
	start, end int64
}

type cacheEntry struct {
	samples []models.RawSample
	expires time.Time
}

type responseCache struct {
	entries *lru.Cache
	clock   Clock
}

func newResponseCache(size int, clock Clock) (*responseCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &responseCache{entries: entries, clock: clock}, nil
}

// get returns a copy of the cached samples if the entry has not expired.
func (c *responseCache) get(key cacheKey) ([]models.RawSample, bool) {
	value, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry := value.(cacheEntry)
	if !c.clock.Now().Before(entry.expires) {
		return nil, false
	}
	return cloneSamples(entry.samples), true
}

func (c *responseCache) add(key cacheKey, samples []models.RawSample, ttl time.Duration) {
	c.entries.Add(key, cacheEntry{
		samples: cloneSamples(samples),
		expires: c.clock.Now().Add(ttl),
	})
}

func cloneSamples(samples []models.RawSample) []models.RawSample {
	out := make([]models.RawSample, len(samples))
	copy(out, samples)
	return out
}
