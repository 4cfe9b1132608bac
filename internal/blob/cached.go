package blob

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// URLCache remembers signed URLs until shortly before they expire.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, url string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// urlMargin is subtracted from the signing TTL so cached URLs never reach
// clients about to expire.
const urlMargin = time.Minute

// CachedStore serves signed URLs from a cache. Cache failures are logged and
// fall through to the underlying store.
type CachedStore struct {
	Store
	cache  URLCache
	logger *zap.Logger
}

// NewCachedStore wraps next with a signed URL cache.
func NewCachedStore(next Store, cache URLCache, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{Store: next, cache: cache, logger: logger}
}

func (c *CachedStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("url cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return url, nil
	}

	url, err = c.Store.SignedURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	if keep := ttl - urlMargin; keep > 0 {
		if err := c.cache.Set(ctx, key, url, keep); err != nil {
			c.logger.Warn("url cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return url, nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("url cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
	return c.Store.Delete(ctx, key)
}

var _ Store = (*CachedStore)(nil)
