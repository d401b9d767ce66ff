package recall

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Query-cache tunables and their clamp ranges.
const (
	DefaultCacheTTL      = 30 * time.Second
	MinCacheTTL          = time.Second
	MaxCacheTTL          = 300 * time.Second
	DefaultCacheMaxBytes = 16 << 20
	MinCacheMaxBytes     = 1 << 20
	MaxCacheMaxBytes     = 64 << 20

	// Entry-count ceiling for the underlying LRU; the byte budget is the
	// real limit.
	cacheMaxEntries = 1024
)

// CacheStats exposes the cache counters.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheEntry struct {
	candidates []Candidate
	size       int64
	expiresAt  time.Time
}

// QueryCache is a time- and byte-budgeted cache for merged candidate sets.
// It is an owned object rather than a package-level singleton so tests can
// construct isolated instances with their own clock. The check-then-insert
// sequence for a key is guarded by a mutex and never yields between the
// check and the mutation.
type QueryCache struct {
	mu         sync.Mutex
	lru        *simplelru.LRU[uint64, *cacheEntry]
	totalBytes int64
	maxBytes   int64
	ttl        time.Duration
	now        func() time.Time

	hits, misses, evictions uint64
}

// NewQueryCache creates a cache with the given byte budget and TTL, both
// clamped to their allowed ranges. A nil clock defaults to time.Now.
func NewQueryCache(maxBytes int64, ttl time.Duration, clock func() time.Time) *QueryCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheMaxBytes
	}
	if maxBytes < MinCacheMaxBytes {
		maxBytes = MinCacheMaxBytes
	}
	if maxBytes > MaxCacheMaxBytes {
		maxBytes = MaxCacheMaxBytes
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if ttl < MinCacheTTL {
		ttl = MinCacheTTL
	}
	if ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}

	c := &QueryCache{maxBytes: maxBytes, ttl: ttl, now: clock}
	c.lru, _ = simplelru.NewLRU[uint64, *cacheEntry](cacheMaxEntries, func(_ uint64, e *cacheEntry) {
		c.totalBytes -= e.size
		c.evictions++
	})
	return c
}

// cacheKey derives the cache key from the store identity, the pool limits,
// and the sorted deduplicated keyword set.
func cacheKey(storeID string, candidateMax, keywordMax int, keywords []string) uint64 {
	uniq := make([]string, 0, len(keywords))
	seen := map[string]bool{}
	for _, kw := range keywords {
		if !seen[kw] {
			seen[kw] = true
			uniq = append(uniq, kw)
		}
	}
	sort.Strings(uniq)

	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%s", storeID, candidateMax, keywordMax, strings.Join(uniq, "\x00"))
	return h.Sum64()
}

// Get returns the cached candidate set for a key. An expired entry is
// evicted and reported as a miss; a hit refreshes the entry's recency.
func (c *QueryCache) Get(key uint64) ([]Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.candidates, true
}

// Put caches a merged candidate set. An entry whose own serialized size
// exceeds the byte budget is never cached. After insertion, the oldest
// entries are evicted until the total stays within budget.
func (c *QueryCache) Put(key uint64, candidates []Candidate) {
	raw, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	size := int64(len(raw))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replace counts the old entry out through the eviction callback.
	c.lru.Remove(key)
	c.lru.Add(key, &cacheEntry{
		candidates: candidates,
		size:       size,
		expiresAt:  c.now().Add(c.ttl),
	})
	c.totalBytes += size

	for c.totalBytes > c.maxBytes && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Stats returns the hit/miss/eviction counters and hit rate.
func (c *QueryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CacheStats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	return st
}

// Bytes returns the current total byte estimate, for tests.
func (c *QueryCache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}
