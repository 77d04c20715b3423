package jsparser

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/ije/esbuild-internal/xxhash"
)

// Cache caches parsed modules by path and content, so that an unchanged file
// is parsed once across rebuilds. Modules are immutable and shared by callers.
type Cache struct {
	cache *ristretto.Cache
}

// NewCache creates a parse cache holding at most maxBytes of source text.
func NewCache(maxBytes int64) (*Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache}, nil
}

// Parse returns the cached module of the file, parsing it on a miss.
// Parse errors are not cached.
func (c *Cache) Parse(ctx context.Context, filename string, src []byte) (*Module, error) {
	if c == nil {
		return Parse(ctx, filename, src)
	}
	key := cacheKey(filename, src)
	if v, ok := c.cache.Get(key); ok {
		return v.(*Module), nil
	}
	mod, err := Parse(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	if c.cache.Set(key, mod, int64(len(src))+1) {
		c.cache.Wait()
	}
	return mod, nil
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	if c != nil {
		c.cache.Close()
	}
}

func cacheKey(filename string, src []byte) uint64 {
	h := xxhash.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write(src)
	return h.Sum64()
}
