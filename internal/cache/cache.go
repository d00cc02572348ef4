// Package cache stores collaborator responses (narratives, embeddings)
// so repeated analyses of the same text do not call external services again.
//
// Keys are built with CacheKey and carry a namespace, which the disk layer
// uses as a subdirectory and the observer uses as a metric label.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/chartrisk/internal/model"
)

const keyPrefix = "chartrisk:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Pruner is implemented by caches that can drop expired entries eagerly
type Pruner interface {
	Prune() (int, error)
}

// CacheKey generates a namespaced cache key from request parts
func CacheKey(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + namespace + ":" + hex.EncodeToString(hash[:])
}

// splitKey returns the namespace and digest of a CacheKey result.
// Foreign keys have an empty namespace.
func splitKey(key string) (namespace, digest string) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", key
	}
	namespace, digest, ok = strings.Cut(rest, ":")
	if !ok {
		return "", rest
	}
	return namespace, digest
}

// New builds the cache described by cfg: nothing when disabled,
// memory only without a directory, memory over disk otherwise.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return NoopCache{}
	}
	if cfg.Dir == "" {
		return NewMemoryCache(cfg.TTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.TTL, cfg.Dir, cfg.TTL)
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(string) ([]byte, bool)                { return nil, false }
func (NoopCache) Set(string, []byte, time.Duration) error { return nil }
func (NoopCache) Delete(string) error                      { return nil }
func (NoopCache) Clear() error                             { return nil }

// Observer receives one call per lookup
type Observer interface {
	CacheLookup(namespace string, hit bool)
}

// Observed reports lookups of an underlying cache to an Observer
type Observed struct {
	Cache
	observer Observer
}

// WithObserver wraps c so every Get is reported to o. A nil observer
// returns c unchanged.
func WithObserver(c Cache, o Observer) Cache {
	if o == nil {
		return c
	}
	return &Observed{Cache: c, observer: o}
}

// Get implements Cache
func (c *Observed) Get(key string) ([]byte, bool) {
	v, ok := c.Cache.Get(key)
	namespace, _ := splitKey(key)
	c.observer.CacheLookup(namespace, ok)
	return v, ok
}

// Prune delegates to the wrapped cache when it supports pruning
func (c *Observed) Prune() (int, error) {
	if p, ok := c.Cache.(Pruner); ok {
		return p.Prune()
	}
	return 0, nil
}
