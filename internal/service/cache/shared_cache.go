package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "FxBridge/pkg/cache"
)

// SharedCache adapts the shared cache service (Redis or layered) to the
// BytesCache interface.
type SharedCache struct {
	c pkgcache.Service
}

func NewSharedCache(c pkgcache.Service) *SharedCache {
	return &SharedCache{c: c}
}

func (r *SharedCache) GetBytes(key string) ([]byte, bool, error) {
	var raw string
	if err := r.c.Get(context.Background(), key, &raw); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(raw), true, nil
}

func (r *SharedCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.c.Set(context.Background(), key, string(value), ttl)
}

var _ BytesCache = (*SharedCache)(nil)
