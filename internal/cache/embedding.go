// Package cache provides in-memory caching for the search pipeline.
//
// QueryEmbeddingCache stores query->vector mappings to avoid redundant
// embedding calls for repeated or similar queries.
package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultQueryEmbeddingCacheSize is the bound mandated by §4.3: the cache is
// advisory only, a miss is never an error, and it holds at most this many
// entries.
const DefaultQueryEmbeddingCacheSize = 1000

// DefaultQueryEmbeddingTTL is the entry lifetime mandated by §3.
const DefaultQueryEmbeddingTTL = 24 * time.Hour

var whitespaceRun = regexp.MustCompile(`\s+`)

// QueryEmbeddingCache is the bounded, TTL-based LRU for query vectors (C3).
// It is a first-class object with a size limit, per the "implicit caches ->
// explicit LRU components" design note — never an ad-hoc map.
type QueryEmbeddingCache struct {
	lru *lru.LRU[string, []float32]
}

// NewQueryEmbeddingCache creates a QueryEmbeddingCache bounded to size
// entries, each expiring after ttl.
func NewQueryEmbeddingCache(size int, ttl time.Duration) *QueryEmbeddingCache {
	if size <= 0 {
		size = DefaultQueryEmbeddingCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultQueryEmbeddingTTL
	}
	return &QueryEmbeddingCache{lru: lru.NewLRU[string, []float32](size, nil, ttl)}
}

// Get returns a cached embedding for the normalized query text.
func (c *QueryEmbeddingCache) Get(query string) ([]float32, bool) {
	key := NormalizedQueryKey(query)
	vec, ok := c.lru.Get(key)
	if ok {
		slog.Debug("query embedding cache hit", "key", key)
	}
	return vec, ok
}

// Set stores an embedding for the normalized query text.
func (c *QueryEmbeddingCache) Set(query string, vec []float32) {
	c.lru.Add(NormalizedQueryKey(query), vec)
}

// Len returns the number of entries currently cached.
func (c *QueryEmbeddingCache) Len() int {
	return c.lru.Len()
}

// NormalizedQueryKey returns the deterministic cache key for a query: a
// lowercased, trimmed, whitespace-collapsed form, hashed for a bounded key
// size.
func NormalizedQueryKey(query string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), " ")
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("qe:%x", h[:16])
}
