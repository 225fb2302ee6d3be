package qr

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 10 * time.Minute
)

// Renderer turns content into SVG markup.
type Renderer func(content string) (string, error)

// Cache memoises rendered QR codes by define id. It is bounded both by
// entry count and by age, and concurrent misses for the same key render
// once.
type Cache struct {
	entries *expirable.LRU[string, string]
	group   singleflight.Group
	render  Renderer
	onHit   func()
	onMiss  func()
}

// CacheOption configures a Cache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	size   int
	ttl    time.Duration
	render Renderer
	onHit  func()
	onMiss func()
}

// WithSize bounds the number of cached entries.
func WithSize(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithTTL bounds how long an entry stays cached.
func WithTTL(d time.Duration) CacheOption {
	return func(c *cacheConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithRenderer replaces RenderSVG.
func WithRenderer(r Renderer) CacheOption {
	return func(c *cacheConfig) {
		if r != nil {
			c.render = r
		}
	}
}

// WithHitMissHooks registers callbacks for cache hits and misses.
func WithHitMissHooks(onHit, onMiss func()) CacheOption {
	return func(c *cacheConfig) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// NewCache creates a bounded QR cache.
func NewCache(opts ...CacheOption) *Cache {
	cfg := cacheConfig{
		size:   defaultCacheSize,
		ttl:    defaultCacheTTL,
		render: RenderSVG,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cache{
		entries: expirable.NewLRU[string, string](cfg.size, nil, cfg.ttl),
		render:  cfg.render,
		onHit:   cfg.onHit,
		onMiss:  cfg.onMiss,
	}
}

// GetOrRender returns the SVG cached under key, rendering content on a miss.
// Render errors are not cached.
func (c *Cache) GetOrRender(key, content string) (string, error) {
	if svg, ok := c.entries.Get(key); ok {
		c.hit()
		return svg, nil
	}
	c.miss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		if svg, ok := c.entries.Get(key); ok {
			return svg, nil
		}
		svg, err := c.render(content)
		if err != nil {
			return "", err
		}
		c.entries.Add(key, svg)
		return svg, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Get returns a cached SVG without rendering.
func (c *Cache) Get(key string) (string, bool) {
	return c.entries.Get(key)
}

// Evict removes key and reports whether it was present.
func (c *Cache) Evict(key string) bool {
	return c.entries.Remove(key)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) hit() {
	if c.onHit != nil {
		c.onHit()
	}
}

func (c *Cache) miss() {
	if c.onMiss != nil {
		c.onMiss()
	}
}
