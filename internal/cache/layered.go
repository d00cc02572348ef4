package cache

import "time"

// LayeredCache reads through memory to disk. Disk hits are promoted to
// memory for the entry's remaining lifetime.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a memory cache over a disk cache rooted at diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}

	e, ok := c.disk.lookup(key)
	if !ok {
		return nil, false
	}
	var ttl time.Duration
	if !e.ExpiresAt.IsZero() {
		ttl = time.Until(e.ExpiresAt)
	}
	if ttl >= 0 {
		_ = c.memory.Set(key, e.Data, ttl)
	}
	return e.Data, true
}

// Set writes both layers; a disk failure is returned after memory is updated
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Prune sweeps both layers and reports the disk entries removed
func (c *LayeredCache) Prune() (int, error) {
	_, _ = c.memory.Prune()
	return c.disk.Prune()
}
