// Package embedcache caches embedding vectors by (model, content) so
// repeated extraction/context-assembly calls over the same text skip the
// embedding provider entirely. Grounded on the teacher's cache-adjacent
// idioms elsewhere in the pack (an LRU with a bounded size and wall-clock
// expiry is the standard shape for a hot-path memoization layer); no
// example repo in this pack uses golang-lru directly, so the public
// expirable.LRU API is used exactly as hashicorp documents it.
package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache memoizes []float32 embeddings. A zero-value Cache is not usable;
// construct with New.
type Cache struct {
	lru *expirable.LRU[string, []float32]
}

// New builds a cache holding up to size entries, each expiring ttl after
// insertion regardless of further reads.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{lru: expirable.NewLRU[string, []float32](size, nil, ttl)}
}

// Get returns the cached embedding for (model, text), if present and not
// expired. Invalid input (empty model or text) always misses rather than
// erroring — callers should simply fall through to the embedding
// provider.
func (c *Cache) Get(model, text string) ([]float32, bool) {
	if model == "" || text == "" {
		return nil, false
	}
	return c.lru.Get(key(model, text))
}

// Put stores an embedding for (model, text). A nil or empty vector is
// silently ignored rather than cached as a negative result.
func (c *Cache) Put(model, text string, embedding []float32) {
	if model == "" || text == "" || len(embedding) == 0 {
		return
	}
	c.lru.Add(key(model, text), embedding)
}

func (c *Cache) Len() int { return c.lru.Len() }

// key hashes the text so cache keys stay a fixed, small size regardless
// of how long the source content is.
func key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}
