package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by content hash. Symbol bodies
// repeat across incremental runs, so the hit rate during reindexing
// is high.
type Cache struct {
	entries *lru.Cache[string, *Embedding]
}

// NewCache builds a cache holding at most maxLen embeddings.
// Non-positive sizes fall back to the default.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	entries, _ := lru.New[string, *Embedding](maxLen)
	return &Cache{entries: entries}
}

// Get returns a copy of the cached embedding. Callers receive their
// own vector so mutations cannot pollute the cache.
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

func (c *Cache) Set(hash string, emb *Embedding) {
	c.entries.Add(hash, emb)
}

func (c *Cache) Size() int {
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.entries.Purge()
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = make([]float32, len(e.Vector))
	copy(out.Vector, e.Vector)
	return &out
}

// ComputeHash derives the cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
