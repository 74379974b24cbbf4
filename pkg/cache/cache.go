// pkg/cache/cache.go
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/clock"
)

// Store is the key-value surface used by rate limiting, telemetry and web
// sessions. A ttl of zero means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr adds one to the counter at key. The ttl is applied only when the
	// key is created, so the window is fixed from the first hit.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime, or zero when the key is missing
	// or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// PushCapped appends value to the list at key, keeps only the newest
	// max entries and resets the list ttl.
	PushCapped(ctx context.Context, key, value string, max int, ttl time.Duration) error
	Range(ctx context.Context, key string) ([]string, error)
}

type item struct {
	value      string
	list       []string
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && !now.Before(i.expiration)
}

// Cache is the in-process Store. Expired keys are invisible on read and
// removed by a periodic sweep.
type Cache struct {
	items map[string]item
	mu    sync.Mutex
	clock clock.Clock
	stop  chan struct{}
	once  sync.Once
}

func NewCache(clk clock.Clock, gcInterval time.Duration) *Cache {
	if clk == nil {
		clk = clock.System()
	}
	cache := &Cache{
		items: make(map[string]item),
		clock: clk,
		stop:  make(chan struct{}),
	}
	if gcInterval > 0 {
		go cache.startGC(gcInterval)
	}
	return cache
}

func (c *Cache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.clock.Now().Add(ttl)
}

// lookup must be called with the lock held.
func (c *Cache) lookup(key string) (item, bool) {
	it, found := c.items[key]
	if !found {
		return item{}, false
	}
	if it.expired(c.clock.Now()) {
		delete(c.items, key)
		return item{}, false
	}
	return it, true
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, found := c.lookup(key)
	if !found {
		return "", false, nil
	}
	return it.value, true, nil
}

func (c *Cache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{value: value, expiration: c.expiry(ttl)}
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

func (c *Cache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, found := c.lookup(key)
	if !found {
		it = item{value: "0", expiration: c.expiry(ttl)}
	}
	n, err := strconv.ParseInt(it.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	it.value = strconv.FormatInt(n, 10)
	c.items[key] = it
	return n, nil
}

func (c *Cache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, found := c.lookup(key)
	if !found || it.expiration.IsZero() {
		return 0, nil
	}
	return it.expiration.Sub(c.clock.Now()), nil
}

func (c *Cache) PushCapped(_ context.Context, key, value string, max int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, _ := c.lookup(key)
	list := append(it.list, value)
	if max > 0 && len(list) > max {
		list = append([]string(nil), list[len(list)-max:]...)
	}
	c.items[key] = item{list: list, expiration: c.expiry(ttl)}
	return nil
}

func (c *Cache) Range(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, found := c.lookup(key)
	if !found {
		return nil, nil
	}
	return append([]string(nil), it.list...), nil
}

// Len reports live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	return len(c.items)
}

func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

// sweep must be called with the lock held.
func (c *Cache) sweep() {
	now := c.clock.Now()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
		}
	}
}

func (c *Cache) startGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.sweep()
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
