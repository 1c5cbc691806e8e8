package hierconf

// ContentCache stores resolved content keyed by the literal reference URI.
// A Resolver owns its cache; entries live until Clear is called.
type ContentCache interface {
	Get(uri string) (string, bool)
	Set(uri, content string)
	Clear()
}

// ResolverWithContentCache replaces the resolver's default in-memory cache.
func ResolverWithContentCache(cache ContentCache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// NewMemoryContentCache returns the map-backed cache resolvers use by
// default. It is not safe for concurrent use.
func NewMemoryContentCache() ContentCache {
	return &memoryContentCache{entries: map[string]string{}}
}

type memoryContentCache struct {
	entries map[string]string
}

func (c *memoryContentCache) Get(uri string) (string, bool) {
	content, ok := c.entries[uri]
	return content, ok
}

func (c *memoryContentCache) Set(uri, content string) {
	c.entries[uri] = content
}

func (c *memoryContentCache) Clear() {
	clear(c.entries)
}
