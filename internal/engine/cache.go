package engine

import "github.com/roach88/varsel/internal/catalog"

// QueryCache memoizes filter results by canonical selection key.
//
// A cache belongs to one index generation (the index fingerprint). Entries
// are never evicted one by one; replacing the index resets the whole cache.
// Not safe for concurrent use: the Resolver is the only mutator.
type QueryCache struct {
	generation string
	entries    map[string][]catalog.VariationRecord
	hits       int
	misses     int
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Generation string
	Entries    int
	Hits       int
	Misses     int
}

// NewQueryCache creates an empty cache for the given index generation.
func NewQueryCache(generation string) *QueryCache {
	return &QueryCache{
		generation: generation,
		entries:    make(map[string][]catalog.VariationRecord),
	}
}

// Get returns the cached result for key.
func (c *QueryCache) Get(key string) ([]catalog.VariationRecord, bool) {
	result, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return result, ok
}

// Put stores a result. An existing entry for key is kept: results are a
// pure function of the key within one generation.
func (c *QueryCache) Put(key string, result []catalog.VariationRecord) {
	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = result
}

// Reset drops every entry and starts a new generation.
func (c *QueryCache) Reset(generation string) {
	c.generation = generation
	c.entries = make(map[string][]catalog.VariationRecord)
	c.hits = 0
	c.misses = 0
}

// Generation returns the index fingerprint the cache is bound to.
func (c *QueryCache) Generation() string {
	return c.generation
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	return len(c.entries)
}

// Stats returns the current counters.
func (c *QueryCache) Stats() CacheStats {
	return CacheStats{
		Generation: c.generation,
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
	}
}
