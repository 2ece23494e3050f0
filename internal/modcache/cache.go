// Package modcache bounds the set of compiled modules an engine keeps warm with an LRU, so long-lived
// embedders that compile many short-lived modules (a CLI watch loop, a multi-tenant host) don't leak compiled
// bytecode forever.
package modcache

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ID identifies a compiled module by the SHA-256 of its canonical (resolved) source bytes.
type ID [sha256.Size]byte

// HashSource derives an ID from a module's source bytes (the binary or re-serialized text form).
func HashSource(b []byte) ID {
	return sha256.Sum256(b)
}

// Cache bounds a set of compiled entries of type T by module ID, evicting least-recently-used entries past
// MaxEntries.
type Cache[T any] struct {
	lru *lru.Cache[ID, T]
}

const defaultMaxEntries = 128

// New creates a Cache with the default capacity (128 entries).
func New[T any]() *Cache[T] {
	c, err := lru.New[ID, T](defaultMaxEntries)
	if err != nil {
		// Only returns an error for a non-positive size, which defaultMaxEntries never is.
		panic(err)
	}
	return &Cache[T]{lru: c}
}

// WithMaxEntries rebuilds the cache with a different capacity, discarding any entries beyond the new size from
// the least-recently-used end.
func (c *Cache[T]) WithMaxEntries(n int) *Cache[T] {
	nc, err := lru.New[ID, T](n)
	if err != nil {
		panic(err)
	}
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok {
			nc.Add(k, v)
		}
	}
	return &Cache[T]{lru: nc}
}

// Get returns the entry for id, if present, marking it most-recently-used.
func (c *Cache[T]) Get(id ID) (T, bool) {
	return c.lru.Get(id)
}

// Add inserts or replaces the entry for id.
func (c *Cache[T]) Add(id ID, v T) {
	c.lru.Add(id, v)
}

// Remove evicts the entry for id, if present.
func (c *Cache[T]) Remove(id ID) {
	c.lru.Remove(id)
}

// Len returns the number of entries currently cached.
func (c *Cache[T]) Len() int {
	return c.lru.Len()
}
