package cache

import (
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/cache"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache[T any] struct {
	store *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache service
// defaultExpiration: default TTL for items
// cleanupInterval: how often to scan for expired items
func NewMemoryCache[T any](defaultExpiration, cleanupInterval time.Duration) cache.Service[T] {
	return &memoryCache[T]{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *memoryCache[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (c *memoryCache[T]) Set(key string, value T) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

func (c *memoryCache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *memoryCache[T]) Delete(key string) {
	c.store.Delete(key)
}

func (c *memoryCache[T]) Flush() {
	c.store.Flush()
}

// snapshotCache stores remote cart reads as defensive copies.
type snapshotCache struct {
	inner cache.Service[domain.Cart]
}

// NewSnapshotCache returns the remote cart snapshot cache used by the cart engine.
func NewSnapshotCache(ttl time.Duration) domain.SnapshotCache {
	return &snapshotCache{inner: NewMemoryCache[domain.Cart](ttl, 2*ttl)}
}

func (s *snapshotCache) Get(key string) (domain.Cart, bool) {
	c, ok := s.inner.Get(key)
	if !ok {
		return domain.Cart{}, false
	}
	return c.Clone(), true
}

func (s *snapshotCache) Set(key string, cart domain.Cart) {
	s.inner.Set(key, cart.Clone())
}

func (s *snapshotCache) Delete(key string) {
	s.inner.Delete(key)
}
