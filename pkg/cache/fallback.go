package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/circuit"
	"go.uber.org/zap"
)

// Fallback sends every call to the primary store through a circuit breaker
// and serves it from the secondary store while the primary is failing.
// Counters kept in the secondary are process-local.
type Fallback struct {
	primary   Store
	secondary Store
	breaker   *circuit.Breaker
	logger    *zap.Logger
}

func NewFallback(primary, secondary Store, breaker *circuit.Breaker, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, breaker: breaker, logger: logger}
}

func (f *Fallback) run(op string, primary func() error, secondary func() error) error {
	err := f.breaker.Execute(primary)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !errors.Is(err, circuit.ErrCircuitOpen) {
		f.logger.Warn("Primary cache failed, using in-process fallback",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
	return secondary()
}

func (f *Fallback) Get(ctx context.Context, key string) (value string, found bool, err error) {
	err = f.run("get", func() error {
		var e error
		value, found, e = f.primary.Get(ctx, key)
		return e
	}, func() error {
		var e error
		value, found, e = f.secondary.Get(ctx, key)
		return e
	})
	return value, found, err
}

func (f *Fallback) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return f.run("set", func() error {
		return f.primary.Set(ctx, key, value, ttl)
	}, func() error {
		return f.secondary.Set(ctx, key, value, ttl)
	})
}

func (f *Fallback) Delete(ctx context.Context, keys ...string) error {
	return f.run("delete", func() error {
		return f.primary.Delete(ctx, keys...)
	}, func() error {
		return f.secondary.Delete(ctx, keys...)
	})
}

func (f *Fallback) Incr(ctx context.Context, key string, ttl time.Duration) (n int64, err error) {
	err = f.run("incr", func() error {
		var e error
		n, e = f.primary.Incr(ctx, key, ttl)
		return e
	}, func() error {
		var e error
		n, e = f.secondary.Incr(ctx, key, ttl)
		return e
	})
	return n, err
}

func (f *Fallback) TTL(ctx context.Context, key string) (d time.Duration, err error) {
	err = f.run("ttl", func() error {
		var e error
		d, e = f.primary.TTL(ctx, key)
		return e
	}, func() error {
		var e error
		d, e = f.secondary.TTL(ctx, key)
		return e
	})
	return d, err
}

func (f *Fallback) PushCapped(ctx context.Context, key, value string, max int, ttl time.Duration) error {
	return f.run("push", func() error {
		return f.primary.PushCapped(ctx, key, value, max, ttl)
	}, func() error {
		return f.secondary.PushCapped(ctx, key, value, max, ttl)
	})
}

func (f *Fallback) Range(ctx context.Context, key string) (items []string, err error) {
	err = f.run("range", func() error {
		var e error
		items, e = f.primary.Range(ctx, key)
		return e
	}, func() error {
		var e error
		items, e = f.secondary.Range(ctx, key)
		return e
	})
	return items, err
}
