package cache

import (
	"sort"
	"sync"

	"feedhub/pkg/domain"
)

// Cache holds the articles of the last successful parse of each feed, keyed by feed title.
// Entries live for the lifetime of the process and are replaced wholesale on refetch.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]domain.Article
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[string][]domain.Article),
	}
}

// Get returns the cached articles for a feed.
// The boolean is false when the feed was never stored, even if a stored entry may be empty.
func (c *Cache) Get(key string) ([]domain.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	articles, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return clone(articles), true
}

// Put stores the articles for a feed, replacing any previous entry
func (c *Cache) Put(key string, articles []domain.Article) {
	stored := clone(articles)
	if stored == nil {
		stored = []domain.Article{}
	}

	c.mu.Lock()
	c.entries[key] = stored
	c.mu.Unlock()
}

// Len returns the number of cached feeds
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cached feed titles, sorted
func (c *Cache) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// clone copies the slice so callers cannot mutate a stored entry
func clone(articles []domain.Article) []domain.Article {
	if articles == nil {
		return nil
	}
	out := make([]domain.Article, len(articles))
	copy(out, articles)
	return out
}
