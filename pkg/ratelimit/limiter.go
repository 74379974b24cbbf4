// Package ratelimit implements fixed-window attempt counting on a cache.Store.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/cache"
)

// Limiter counts attempts per key inside a decay window that starts at the
// first hit. Keys never interfere with each other.
type Limiter interface {
	Hit(ctx context.Context, key string, decay time.Duration) (int64, error)
	Attempts(ctx context.Context, key string) (int64, error)
	TooManyAttempts(ctx context.Context, key string, max int) (bool, error)
	AvailableIn(ctx context.Context, key string) (time.Duration, error)
	Clear(ctx context.Context, key string) error
}

// Policy pairs a maximum with its decay window.
type Policy struct {
	Max   int
	Decay time.Duration
}

type StoreLimiter struct {
	store  cache.Store
	prefix string
}

// New returns a Limiter. prefix namespaces every key it touches.
func New(store cache.Store, prefix string) *StoreLimiter {
	return &StoreLimiter{store: store, prefix: prefix}
}

func (l *StoreLimiter) key(k string) string {
	return l.prefix + k
}

func (l *StoreLimiter) Hit(ctx context.Context, key string, decay time.Duration) (int64, error) {
	n, err := l.store.Incr(ctx, l.key(key), decay)
	if err != nil {
		return 0, fmt.Errorf("rate limiter hit: %w", err)
	}
	return n, nil
}

func (l *StoreLimiter) Attempts(ctx context.Context, key string) (int64, error) {
	raw, found, err := l.store.Get(ctx, l.key(key))
	if err != nil {
		return 0, fmt.Errorf("rate limiter attempts: %w", err)
	}
	if !found {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rate limiter attempts: %w", err)
	}
	return n, nil
}

func (l *StoreLimiter) TooManyAttempts(ctx context.Context, key string, max int) (bool, error) {
	n, err := l.Attempts(ctx, key)
	if err != nil {
		return false, err
	}
	return n >= int64(max), nil
}

func (l *StoreLimiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	d, err := l.store.TTL(ctx, l.key(key))
	if err != nil {
		return 0, fmt.Errorf("rate limiter ttl: %w", err)
	}
	return d, nil
}

func (l *StoreLimiter) Clear(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, l.key(key)); err != nil {
		return fmt.Errorf("rate limiter clear: %w", err)
	}
	return nil
}

// RetrySeconds rounds a remaining duration up to whole seconds, minimum one.
func RetrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
