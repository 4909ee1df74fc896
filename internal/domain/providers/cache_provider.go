package providers

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by CacheProvider.Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value; ErrCacheMiss when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes one or more keys
	Delete(ctx context.Context, keys ...string) error
}
