// ABOUTME: In-memory cache for static previews keyed by the sha256 of the file set.
// ABOUTME: Supports TTL-based expiry, concurrent access, and manual cache clearing.
package render

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2389-research/vellum/artifact"
)

// RenderFunc turns a file set into a document.
type RenderFunc func(files []artifact.File) string

type cacheEntry struct {
	doc       string
	createdAt time.Time
}

// Cache wraps a RenderFunc with an in-memory cache. Keys are derived from the
// paths and contents of the files, independent of their order.
type Cache struct {
	renderFn RenderFunc
	ttl      time.Duration
	entries  map[string]*cacheEntry
	mu       sync.RWMutex
}

// NewCache creates a Cache around Render.
func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithFunc(Render, ttl)
}

// NewCacheWithFunc creates a Cache around an arbitrary render function.
func NewCacheWithFunc(renderFn RenderFunc, ttl time.Duration) *Cache {
	return &Cache{
		renderFn: renderFn,
		ttl:      ttl,
		entries:  make(map[string]*cacheEntry),
	}
}

// Render returns the cached document for files, rendering on a miss or expiry.
func (c *Cache) Render(files []artifact.File) string {
	key := CacheKey(files)

	c.mu.RLock()
	if entry, ok := c.entries[key]; ok && time.Since(entry.createdAt) < c.ttl {
		doc := entry.doc
		c.mu.RUnlock()
		return doc
	}
	c.mu.RUnlock()

	doc := c.renderFn(files)

	c.mu.Lock()
	c.entries[key] = &cacheEntry{doc: doc, createdAt: time.Now()}
	c.mu.Unlock()
	return doc
}

// Len returns the number of entries, including expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if time.Since(e.createdAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// CacheKey hashes the sorted path/content pairs of a file set.
func CacheKey(files []artifact.File) string {
	sorted := make([]artifact.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%d:%s\x00%d:%s\x00", len(f.Path), f.Path, len(f.Content), f.Content)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
