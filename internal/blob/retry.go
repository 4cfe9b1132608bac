package blob

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls how RetryingStore backs off between attempts.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig suits requests to a remote object store.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsedTime:  15 * time.Second,
}

// RetryingStore retries failed store calls with exponential backoff. Uploads
// are only retried when the body can be rewound.
type RetryingStore struct {
	next Store
	cfg  RetryConfig
}

// NewRetryingStore wraps next.
func NewRetryingStore(next Store, cfg RetryConfig) *RetryingStore {
	return &RetryingStore{next: next, cfg: cfg}
}

func (r *RetryingStore) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	var policy backoff.BackOff = b
	if r.cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(r.cfg.MaxRetries))
	}

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *RetryingStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	seeker, ok := body.(io.Seeker)
	if !ok {
		return r.next.Put(ctx, key, body, size, contentType)
	}
	first := true
	return r.retry(ctx, func() error {
		if !first {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
		}
		first = false
		return r.next.Put(ctx, key, body, size, contentType)
	})
}

func (r *RetryingStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	return r.retry(ctx, func() error {
		return r.next.Copy(ctx, srcKey, dstKey)
	})
}

func (r *RetryingStore) Delete(ctx context.Context, key string) error {
	return r.retry(ctx, func() error {
		return r.next.Delete(ctx, key)
	})
}

func (r *RetryingStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var url string
	err := r.retry(ctx, func() error {
		var err error
		url, err = r.next.SignedURL(ctx, key, ttl)
		return err
	})
	return url, err
}

var _ Store = (*RetryingStore)(nil)
