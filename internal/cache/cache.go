// Package cache implements the Response Cache: a size-bounded, TTL-bounded
// map from a request fingerprint to a prior completion, plus an approximate
// similarity lookup over the same entries.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldharbor/infergate/pkg/types"
)

// Entry is a stored completion, keyed by the fingerprint of the request
// that produced it.
type Entry struct {
	Key            string
	Content        string
	Provider       string
	Model          string
	Quality        int
	StoredAt       time.Time
	AccessCount    int
	LastAccessedAt time.Time
}

// Stats reports cumulative cache activity. Hits and Misses are monotonic
// counters reset only by Clear.
type Stats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// Config configures a Cache at construction. Zero or negative fields take
// New's defaults (Router passes its own values).
type Config struct {
	MaxSize int
	TTL     time.Duration
}

type record struct {
	entry Entry
	query string // joined "role:content" text the entry was stored against, for GetSimilar
}

// Cache is the in-process Response Cache. All state is guarded by mu; no
// caller may hold mu while doing network I/O (there is none here, but the
// rule is inherited from the shared-resource policy the rest of the module
// follows).
type Cache struct {
	mu      sync.Mutex
	data    map[string]*record
	maxSize int
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New constructs a Cache per cfg. MaxSize <= 0 defaults to 100; TTL <= 0
// defaults to 30 minutes (the core default; the Router passes 150/60m).
func New(cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &Cache{
		data:    make(map[string]*record),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
	}
}

// Key returns the fingerprint for messages, the same key Get/Set operate on.
func (c *Cache) Key(messages []types.Message) string {
	return Fingerprint(messages)
}

// Get performs an exact lookup. Entries older than ttl are treated as
// absent, counted as a miss, and lazily removed.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.data[key]
	if !ok || c.expiredLocked(rec) {
		if ok {
			delete(c.data, key)
		}
		c.misses.Add(1)
		return Entry{}, false
	}

	rec.entry.AccessCount++
	rec.entry.LastAccessedAt = time.Now()
	c.hits.Add(1)
	return rec.entry, true
}

// GetSimilar scans all non-expired entries for the best Dice similarity
// match against messages above threshold. A match updates that entry's
// access stats exactly as Get does (per the reference's behavior, which this
// spec follows).
func (c *Cache) GetSimilar(messages []types.Message, threshold float64) (Entry, bool) {
	query := joinQuery(messages)

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		best      *record
		bestScore float64
	)
	for key, rec := range c.data {
		if c.expiredLocked(rec) {
			delete(c.data, key)
			continue
		}
		score := similarity(query, rec.query)
		if score > threshold && score > bestScore {
			best, bestScore = rec, score
		}
	}

	if best == nil {
		c.misses.Add(1)
		return Entry{}, false
	}

	best.entry.AccessCount++
	best.entry.LastAccessedAt = time.Now()
	c.hits.Add(1)
	return best.entry, true
}

// Set stores content against the fingerprint of messages, evicting the LRU
// entry first if at capacity. The new entry starts with AccessCount 1.
func (c *Cache) Set(messages []types.Message, content, provider, model string, quality int) {
	key := Fingerprint(messages)
	query := joinQuery(messages)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evictLRULocked()
	}

	c.data[key] = &record{
		entry: Entry{
			Key:            key,
			Content:        content,
			Provider:       provider,
			Model:          model,
			Quality:        quality,
			StoredAt:       now,
			AccessCount:    1,
			LastAccessedAt: now,
		},
		query: query,
	}
}

// Stats returns a snapshot of cache size and hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.data)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}

// Clear empties the cache and resets hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*record)
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *Cache) expiredLocked(rec *record) bool {
	return time.Since(rec.entry.StoredAt) > c.ttl
}

// evictLRULocked removes exactly one entry: the one with the smallest
// LastAccessedAt. Called with mu held.
func (c *Cache) evictLRULocked() {
	var (
		oldestKey string
		oldest    time.Time
		first     = true
	)
	for key, rec := range c.data {
		if first || rec.entry.LastAccessedAt.Before(oldest) {
			oldestKey = key
			oldest = rec.entry.LastAccessedAt
			first = false
		}
	}
	if !first {
		delete(c.data, oldestKey)
	}
}
