package llm

import (
	"context"
	"time"

	"github.com/ppiankov/chartrisk/internal/cache"
)

// CachedGenerator memoizes completions per prompt.
// Only successful completions are stored.
type CachedGenerator struct {
	next  Generator
	cache cache.Cache
	ttl   time.Duration
	scope string
}

// NewCachedGenerator wraps next. scope separates entries of different
// providers or models that would otherwise share a prompt.
func NewCachedGenerator(next Generator, c cache.Cache, ttl time.Duration, scope string) *CachedGenerator {
	return &CachedGenerator{next: next, cache: c, ttl: ttl, scope: scope}
}

// Generate implements Generator
func (g *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cache.CacheKey("narrative", g.scope, prompt)
	if data, ok := g.cache.Get(key); ok {
		return string(data), nil
	}

	text, err := g.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	_ = g.cache.Set(key, []byte(text), g.ttl)
	return text, nil
}
