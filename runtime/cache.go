package runtime

import (
	"sync"
	"time"
)

// cacheEntry is a compiled template plus what it was built from.
type cacheEntry struct {
	template  *Template
	usedAt    time.Time
	expiresAt time.Time
	// deps maps every template spliced into this one, itself included, to
	// its modification time when loaded.
	deps map[string]time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// stale reports whether any dependency changed since it was loaded.
func (e *cacheEntry) stale(loader Loader) bool {
	mt, ok := loader.(ModTimeLoader)
	if !ok {
		return false
	}
	for name, loaded := range e.deps {
		if loaded.IsZero() {
			continue
		}
		current, err := mt.TemplateModTime(name)
		if err != nil || !current.Equal(loaded) {
			return true
		}
	}
	return false
}

// TemplateCache provides thread-safe template caching with TTL support
type TemplateCache struct {
	entries map[string]*cacheEntry
	mutex   sync.Mutex
	ttl     time.Duration
	maxSize int
}

// NewTemplateCache creates a cache. A zero ttl never expires entries and a
// maxSize below one means no limit.
func NewTemplateCache(ttl time.Duration, maxSize int) *TemplateCache {
	return &TemplateCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached template for name if it is neither expired nor
// stale with respect to loader.
func (c *TemplateCache) Get(name string, loader Loader) (*Template, bool) {
	c.mutex.Lock()
	entry, ok := c.entries[name]
	c.mutex.Unlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	if entry.expired(now) || entry.stale(loader) {
		c.Delete(name)
		return nil, false
	}

	c.mutex.Lock()
	entry.usedAt = now
	c.mutex.Unlock()
	return entry.template, true
}

// Dependencies returns the dependency set recorded for name.
func (c *TemplateCache) Dependencies(name string) map[string]time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[name]
	if !ok {
		return nil
	}
	deps := make(map[string]time.Time, len(entry.deps))
	for k, v := range entry.deps {
		deps[k] = v
	}
	return deps
}

// Set stores a template in the cache
func (c *TemplateCache) Set(name string, template *Template, deps map[string]time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[name]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLeastRecentlyUsed()
	}

	now := time.Now()
	entry := &cacheEntry{
		template: template,
		usedAt:   now,
		deps:     make(map[string]time.Time, len(deps)),
	}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}
	for k, v := range deps {
		entry.deps[k] = v
	}
	c.entries[name] = entry
}

// Delete removes a template from the cache
func (c *TemplateCache) Delete(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, name)
}

// Clear removes all entries from the cache
func (c *TemplateCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheEntry)
}

// Invalidate removes name and every template that includes it, returning
// the number of entries dropped.
func (c *TemplateCache) Invalidate(name string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	dropped := 0
	for key, entry := range c.entries {
		if _, depends := entry.deps[name]; depends || key == name {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Size returns the current number of cached entries
func (c *TemplateCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

// SetTTL changes the lifetime of entries stored from now on.
func (c *TemplateCache) SetTTL(ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ttl = ttl
}

// SetMaxSize changes the capacity, evicting entries if needed.
func (c *TemplateCache) SetMaxSize(maxSize int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxSize = maxSize
	for maxSize > 0 && len(c.entries) > maxSize {
		c.evictLeastRecentlyUsed()
	}
}

func (c *TemplateCache) evictLeastRecentlyUsed() {
	var oldestName string
	var oldest time.Time

	for name, entry := range c.entries {
		if oldestName == "" || entry.usedAt.Before(oldest) {
			oldestName = name
			oldest = entry.usedAt
		}
	}

	if oldestName != "" {
		delete(c.entries, oldestName)
	}
}
