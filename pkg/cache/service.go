package cache

import "time"

// Service defines the behavior for typed caching mechanisms
type Service[T any] interface {
	// Get retrieves a value from the cache
	// Returns value, true if found and not expired
	Get(key string) (T, bool)

	// Set adds a value to the cache with the default expiration
	Set(key string, value T)

	// SetWithTTL adds a value with an explicit expiration
	SetWithTTL(key string, value T, ttl time.Duration)

	// Delete removes a value from the cache
	Delete(key string)

	// Flush removes all items
	Flush()
}
