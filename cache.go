package wrun

import (
	"wrun/internal/modcache"
	"wrun/internal/wasm"
)

// Cache bounds the set of compiled modules a Runtime (or several, if shared via RuntimeConfig.WithCache) keeps
// warm, so repeatedly compiling the same source — e.g. a CLI watch loop recompiling on every request — skips
// parsing, resolving and validating a module it has already seen. Backed by internal/modcache's
// content-addressed LRU; this implementation never touches disk, since nothing in this runtime's compile
// pipeline needs to survive process restart.
type Cache struct {
	entries *modcache.Cache[*wasm.Module]
}

// NewCache returns a Cache with the default capacity (128 compiled modules). Pass it to
// RuntimeConfig.WithCache to share it across every module a Runtime compiles, or across several Runtimes.
func NewCache() *Cache {
	return &Cache{entries: modcache.New[*wasm.Module]()}
}

// WithMaxEntries returns a copy of c bounded to n entries, evicting the least-recently-used entries beyond
// that from the existing cache.
func (c *Cache) WithMaxEntries(n int) *Cache {
	return &Cache{entries: c.entries.WithMaxEntries(n)}
}

func (c *Cache) get(id modcache.ID) (*wasm.Module, bool) { return c.entries.Get(id) }
func (c *Cache) add(id modcache.ID, m *wasm.Module)       { c.entries.Add(id, m) }
