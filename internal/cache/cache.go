// Package cache provides the short-TTL key/value store backing the
// directory listings. Entries are invalidated by deletion, never updated in
// place.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get returns the stored value and whether the key was present and
	// unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
